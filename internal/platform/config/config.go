// Package config lee la configuración del proceso desde variables de entorno.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// DBDSN opcional: si viene, los registros del servidor van a Postgres.
	DBDSN string

	// LocalStorePath es el archivo SQLite del calendario local del operador.
	// Vacío => in-memory (se pierde al reiniciar).
	LocalStorePath string

	RegistryBaseURL string
	RegistryAPIKey  string

	OdinBaseURL string
	OdinAPIKey  string

	CORSAllowedOrigins []string

	ShutdownTimeout time.Duration
}

// FromEnv arma Config con defaults de desarrollo.
func FromEnv() Config {
	return Config{
		Port:               getString("PORT", "8080"),
		DBDSN:              getString("DB_DSN", ""),
		LocalStorePath:     getString("LOCAL_STORE_PATH", ""),
		RegistryBaseURL:    getString("REGISTRY_BASE_URL", ""),
		RegistryAPIKey:     getString("REGISTRY_API_KEY", ""),
		OdinBaseURL:        getString("ODIN_BASE_URL", ""),
		OdinAPIKey:         getString("ODIN_API_KEY", ""),
		CORSAllowedOrigins: getCSV("CORS_ALLOWED_ORIGINS"),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr devuelve ":<port>" para http.Server.
func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getDuration acepta "15s" o segundos enteros.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
