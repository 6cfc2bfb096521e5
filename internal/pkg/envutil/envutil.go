package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	if log != nil {
		log.Debug("Environment variable found, using environment")
	}
	return strings.TrimSpace(val)
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(valStr) == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(valStr))
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return defaultVal
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if log != nil {
			log.Warn("Environment variable could not be parsed as bool, using default", "env_var", key, "provided", v, "default", defaultVal)
		}
		return defaultVal
	}
}
