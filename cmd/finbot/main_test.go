package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/susu3304/finbot/internal/api"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := execute(t, "token", "12345")
	require.NoError(t, err)

	identity, err := api.NewIssuer("cli-secret", time.Hour).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, int64(12345), identity)

	_, err = execute(t, "token", "abc")
	assert.Error(t, err)
}

func TestTokenCommand_NoSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, "token", "1")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestRatesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/key/latest/EUR", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","conversion_rates":{"USD":1.08,"EUR":1}}`))
	}))
	defer srv.Close()

	t.Setenv("EXCHANGE_API_KEY", "key")
	t.Setenv("EXCHANGE_API_URL", srv.URL)

	out, err := execute(t, "rates", "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR\t1\nUSD\t1.08\n", out)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cli.db"))

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	// Migrations are idempotent.
	_, err = execute(t, "migrate")
	require.NoError(t, err)
}

func TestServeRequiresCredentials(t *testing.T) {
	t.Setenv("TRANSPORT", "telegram")
	t.Setenv("TELEGRAM_TOKEN", "")

	_, err := execute(t, "serve")
	assert.ErrorContains(t, err, "TELEGRAM_TOKEN")
}
