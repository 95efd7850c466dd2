package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/pkg/enums"
	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

type payRequest struct {
	Method enums.PaymentMethod `json:"metodo" validate:"required,valid_enum"`
	Amount int64               `json:"amount" validate:"gte=0"`
	Note   string              `json:"note,omitempty" validate:"max=5"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	details, _ := appErr.Details().(map[string]string)
	return details
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	var req payRequest
	require.NoError(t, DecodeJSONBody(post(`{"metodo":"pix","amount":100}`), &req))
	assert.Equal(t, enums.PaymentMethodPix, req.Method)
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	var req payRequest
	err := DecodeJSONBody(post(`{"metodo":"boleto","amount":-1,"note":"too long"}`), &req)
	assert.Equal(t, map[string]string{
		"metodo": "is not a recognised value",
		"amount": "must be at least 0",
		"note":   "must be at most 5",
	}, detailsOf(t, err))
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"unknown field": `{"metodo":"pix","extra":1}`,
		"trailing data": `{"metodo":"pix"} {"metodo":"pix"}`,
		"not json":      `metodo=pix`,
		"empty":         ``,
		"oversized":     `{"note":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var req payRequest
			err := DecodeJSONBody(post(body), &req)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestDecodeOptionalJSONBody(t *testing.T) {
	type cancelRequest struct {
		Reason string `json:"reason,omitempty" validate:"max=500"`
	}
	var req cancelRequest
	require.NoError(t, DecodeOptionalJSONBody(post(``), &req))
	assert.Empty(t, req.Reason)

	require.NoError(t, DecodeOptionalJSONBody(post(`{"reason":"changed plans"}`), &req))
	assert.Equal(t, "changed plans", req.Reason)

	var strict payRequest
	err := DecodeOptionalJSONBody(post(``), &strict)
	assert.Equal(t, map[string]string{"metodo": "is required"}, detailsOf(t, err))
}
