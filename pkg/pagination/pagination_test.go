package pagination

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/dezko/dezko-backend/pkg/errors"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{At: time.Date(2026, 5, 4, 13, 30, 0, 123, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.At.Equal(out.At))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorEmptyIsFirstPage(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"!!!", "bm8tc2VwYXJhdG9y", "eHx5"} {
		_, err := ParseCursor(raw)
		assert.Error(t, err, raw)
	}
}

func TestFromQuery(t *testing.T) {
	p, err := FromQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, Params{Limit: DefaultLimit}, p)

	p, err = FromQuery(url.Values{"limit": {"10"}})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Limit)

	for _, bad := range []url.Values{
		{"limit": {"abc"}},
		{"limit": {"0"}},
		{"limit": {"101"}},
		{"cursor": {"%%%"}},
	} {
		_, err := FromQuery(bad)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}
}

func TestPage(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 4)
	for i := range rows {
		rows[i] = Cursor{At: base.Add(-time.Duration(i) * time.Hour), ID: uuid.New()}
	}
	key := func(c Cursor) Cursor { return c }

	page, next := Page(rows, 3, key)
	assert.Len(t, page, 3)
	assert.Equal(t, EncodeCursor(rows[2]), next)

	page, next = Page(rows[:2], 3, key)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
