package ledger

import (
	"os"
	"strings"
)

// Config is a configuration for the ledger application
type Config struct {
	HTTPAddr string
	// StoreBackend selects the durable store: file, pg, redis or mem.
	StoreBackend string
	// DataFile is the JSON file used by the file backend.
	DataFile string
	DBDSN    string
	// RedisAddrs holds one address, or several for a cluster.
	RedisAddrs    []string
	RedisPassword string
	RedisKey      string
	// Timezone is an IANA name that decides when a ledger day starts. Empty means server local time.
	Timezone string
	// StaticDir, when set, is served at / (the kiosk page).
	StaticDir   string
	CORSOrigins []string
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:     "0.0.0.0:3000",
		StoreBackend: "file",
		DataFile:     "./data/cards.json",
		RedisAddrs:   []string{"localhost:6379"},
		RedisKey:     "kantin:cards",
		CORSOrigins:  []string{"*"},
	}
}

// ConfigFromEnv overlays environment variables on DefaultConfig.
func ConfigFromEnv() *Config {
	c := DefaultConfig()
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.StoreBackend = getenv("STORE_BACKEND", c.StoreBackend)
	c.DataFile = getenv("DATA_FILE", c.DataFile)
	c.DBDSN = getenv("DB_DSN", c.DBDSN)
	c.RedisAddrs = splitList(getenv("REDIS_ADDR", strings.Join(c.RedisAddrs, ",")))
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisKey = getenv("REDIS_KEY", c.RedisKey)
	c.Timezone = getenv("LEDGER_TZ", c.Timezone)
	c.StaticDir = getenv("STATIC_DIR", c.StaticDir)
	c.CORSOrigins = splitList(getenv("CORS_ORIGINS", strings.Join(c.CORSOrigins, ",")))
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
