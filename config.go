package container

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of a Container.
type Config struct {
	Log LogConfig

	// WarnOnOverride logs a warning whenever a module replaces an existing binding.
	WarnOnOverride bool

	// AsyncWorkers is the pool size used by asynchronous dispatch.
	AsyncWorkers int

	// ShutdownTimeout bounds how long Close spends releasing components.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Log:             DefaultLogConfig(),
		WarnOnOverride:  true,
		AsyncWorkers:    16,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig reads the given .env files (".env" when none are named) and then builds a
// Config from the environment. Missing files are not an error; production deployments
// usually configure through the environment alone.
func LoadConfig(envFiles ...string) Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	_ = godotenv.Load(files...)

	def := DefaultConfig()
	return Config{
		Log: LogConfig{
			Level:  env("CONTAINER_LOG_LEVEL", def.Log.Level),
			Format: env("CONTAINER_LOG_FORMAT", def.Log.Format),
		},
		WarnOnOverride:  envBool("CONTAINER_WARN_ON_OVERRIDE", def.WarnOnOverride),
		AsyncWorkers:    envInt("CONTAINER_ASYNC_WORKERS", def.AsyncWorkers),
		ShutdownTimeout: envDuration("CONTAINER_SHUTDOWN_TIMEOUT", def.ShutdownTimeout),
	}
}

func env(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	v, err := strconv.ParseBool(env(key, ""))
	if err != nil {
		return defaultVal
	}
	return v
}

func envInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(env(key, ""))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(env(key, ""))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}
