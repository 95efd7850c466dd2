package bootstrap

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/logger"
)

func TestProcessCloseRunsNewestFirst(t *testing.T) {
	var buf bytes.Buffer
	p := &Process{Logger: logger.New(logger.Options{ServiceName: "test", Output: &buf})}

	var order []string
	p.Track("database", func() error { order = append(order, "database"); return nil })
	p.Track("redis", func() error { order = append(order, "redis"); return errors.New("conn reset") })
	p.Track("pubsub", func() error { order = append(order, "pubsub"); return errors.New("already closed") })

	p.Close()

	require.Equal(t, []string{"pubsub", "redis", "database"}, order)
	out := buf.String()
	require.Contains(t, out, "process.close_failed")
	require.Contains(t, out, "close redis: conn reset")
	require.Contains(t, out, "close pubsub: already closed")

	order = nil
	p.Close()
	require.Empty(t, order, "closers run once")
}

func TestProcessSealer(t *testing.T) {
	p := &Process{Config: baseConfig(config.GatewayPix)}
	sealer, err := p.Sealer()
	require.NoError(t, err)
	require.Nil(t, sealer)

	p = &Process{Config: baseConfig(config.GatewayMercadoPago)}
	_, err = p.Sealer()
	require.ErrorIs(t, err, ErrSealerRequired)

	p.Config.Security.SecretsKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	sealer, err = p.Sealer()
	require.NoError(t, err)
	require.NotNil(t, sealer)
}

func TestProcessContextCarriesIdentity(t *testing.T) {
	var buf bytes.Buffer
	p := &Process{
		Kind:   "cron-worker",
		Config: &config.Config{App: config.AppConfig{Env: "staging"}},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: &buf}),
	}

	ctx := p.Context(context.Background(), map[string]any{"jobs": 4})
	p.Logger.Info(ctx, "probe")

	out := buf.String()
	require.Contains(t, out, `"env":"staging"`)
	require.Contains(t, out, `"serviceKind":"cron-worker"`)
	require.Contains(t, out, `"jobs":4`)
	require.Contains(t, out, `"instance":`)
}
