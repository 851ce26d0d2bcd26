package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name     string       `json:"name"`
	Source   APIKeySource `json:"source"`
	IsSet    bool         `json:"is_set"`
	Required bool         `json:"required"`
	Masked   string       `json:"masked,omitempty"` // e.g., "AB1...XYZ"
}

// CheckAPIKeys returns the status of every credential the configuration
// can use. A key is required when its provider is selected.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	av := checkKey("Alpha Vantage API Key", cfg.Data.APIKey, "ALPHAVANTAGE_API_KEY", EnvPrefix+"_DATA_API_KEY")
	av.Required = cfg.Data.Provider == "alphavantage"

	redis := checkKey("Redis Password", cfg.Cache.RedisPassword, EnvPrefix+"_CACHE_REDIS_PASSWORD")
	return []KeyStatus{av, redis}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value == "" {
		status.Source = KeySourceNone
		return status
	}
	status.Source = KeySourceConfig
	for _, env := range envVars {
		if os.Getenv(env) != "" {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}

// Redacted returns a copy of the configuration with credentials masked,
// suitable for display.
func (c Config) Redacted() Config {
	if c.Data.APIKey != "" {
		c.Data.APIKey = maskKey(c.Data.APIKey)
	}
	if c.Cache.RedisPassword != "" {
		c.Cache.RedisPassword = maskKey(c.Cache.RedisPassword)
	}
	c.API.CORSOrigins = append([]string(nil), c.API.CORSOrigins...)
	return c
}
