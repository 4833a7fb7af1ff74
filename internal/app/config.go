package app

import (
	"github.com/calegray/concepthub-backend/internal/platform/envutil"
	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

type Config struct {
	Port      string
	GinMode   string
	QueueSize int
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:      envutil.GetEnv("PORT", "8080", log),
		GinMode:   envutil.GetEnv("GIN_MODE", "debug", log),
		QueueSize: envutil.GetEnvAsInt("JOB_QUEUE_SIZE", 64, log),
	}
}
