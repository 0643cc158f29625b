package ledger

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func startTestApp(t *testing.T, config *Config) *App {
	t.Helper()
	app := NewApp(discardLogger(), config)
	require.NoError(t, app.Start())
	t.Cleanup(app.Shutdown)
	return app
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApp_ServesAPIAndProbes(t *testing.T) {
	config := DefaultConfig()
	config.HTTPAddr = "127.0.0.1:0"
	config.StoreBackend = "mem"
	config.StaticDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(config.StaticDir, "index.html"), []byte("<h1>kantin</h1>"), 0o644))

	app := startTestApp(t, config)
	base := "http://" + app.Addr

	status, _ := get(t, base+"/-/live")
	require.Equal(t, http.StatusOK, status)
	status, _ = get(t, base+"/-/ready")
	require.Equal(t, http.StatusOK, status)

	_, err := app.Service().Register(context.Background(), "CARD1", "Alice", 40000)
	require.NoError(t, err)
	resp, err := http.Post(base+"/api/card-tap", "application/json", strings.NewReader(`{"uid":"CARD1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, body := get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `kantin_card_taps_total{result="registered"} 1`)
	require.Contains(t, body, "go_goroutines")

	status, body = get(t, base+"/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "kantin")
}

func TestApp_FileBackendSurvivesRestart(t *testing.T) {
	config := DefaultConfig()
	config.HTTPAddr = "127.0.0.1:0"
	config.DataFile = filepath.Join(t.TempDir(), "data", "cards.json")

	app := NewApp(discardLogger(), config)
	require.NoError(t, app.Start())
	_, err := app.Service().Register(context.Background(), "CARD1", "Alice", 40000)
	require.NoError(t, err)
	_, err = app.Service().Settle(context.Background(), "CARD1", 15000)
	require.NoError(t, err)
	app.Shutdown()

	app = startTestApp(t, config)
	card, err := app.Service().Lookup("CARD1")
	require.NoError(t, err)
	require.Equal(t, int64(25000), card.Balance)
}

func TestApp_UnknownBackend(t *testing.T) {
	config := DefaultConfig()
	config.HTTPAddr = "127.0.0.1:0"
	config.StoreBackend = "floppy"

	err := NewApp(discardLogger(), config).Start()
	require.ErrorContains(t, err, "unsupported STORE_BACKEND")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "10.0.0.1:6379, 10.0.0.2:6379")
	t.Setenv("LEDGER_TZ", "Asia/Jakarta")

	c := ConfigFromEnv()
	require.Equal(t, "redis", c.StoreBackend)
	require.Equal(t, []string{"10.0.0.1:6379", "10.0.0.2:6379"}, c.RedisAddrs)
	require.Equal(t, "Asia/Jakarta", c.Timezone)
	require.Equal(t, "0.0.0.0:3000", c.HTTPAddr)
	require.Equal(t, []string{"*"}, c.CORSOrigins)
}
