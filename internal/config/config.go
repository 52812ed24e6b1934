package config

import (
	"encoding/json"
	"os"
	"strconv"

	"promosms/internal/constants"
	"promosms/internal/models"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing gateway URL"}
	ErrMissingSysID      = models.ConfigError{Message: "missing gateway system id"}
	ErrMissingSrcAddress = models.ConfigError{Message: "missing gateway source address"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
	ErrMissingAIBaseURL  = models.ConfigError{Message: "missing AI base URL"}
	ErrInvalidSMSLength  = models.ConfigError{Message: "sms max_length must be 70 or 140"}
)

// LoadConfig reads a JSON config file, applies environment overrides and
// fills defaults. The AI API key is deliberately absent from the file
// format; main reads it from the environment.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Gateway.URL == "" {
		return ErrMissingGatewayURL
	}
	if c.Gateway.SysID == "" {
		return ErrMissingSysID
	}
	if c.Gateway.SrcAddress == "" {
		return ErrMissingSrcAddress
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.AI.BaseURL == "" {
		return ErrMissingAIBaseURL
	}
	if c.SMS.MaxLength != constants.DefaultSMSMaxLength &&
		c.SMS.MaxLength != constants.ExtendedSMSMaxLength {
		return ErrInvalidSMSLength
	}
	return nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Gateway.TimeoutSec <= 0 {
		c.Gateway.TimeoutSec = constants.DefaultGatewayTimeoutSec
	}
	if c.AI.TimeoutSec <= 0 {
		c.AI.TimeoutSec = constants.DefaultAITimeoutSec
	}
	if c.Redis.TTLHours <= 0 {
		c.Redis.TTLHours = constants.DefaultTranslationTTLHrs
	}
	if c.Dispatch.IntervalSec <= 0 {
		c.Dispatch.IntervalSec = constants.DefaultDispatchIntervalSec
	}
	if c.Dispatch.SendTimeoutSec <= 0 {
		c.Dispatch.SendTimeoutSec = constants.DefaultSendTimeoutSec
	}
	if c.Dispatch.MaxConcurrent <= 0 {
		c.Dispatch.MaxConcurrent = constants.DefaultMaxConcurrentSends
	}
	if c.Dispatch.BatchSize <= 0 {
		c.Dispatch.BatchSize = constants.DefaultClaimBatchSize
	}
	if c.SMS.MaxLength <= 0 {
		c.SMS.MaxLength = constants.DefaultSMSMaxLength
	}
	if c.Query.LimitCeiling <= 0 {
		c.Query.LimitCeiling = constants.DefaultQueryLimitCeiling
	}
	if c.Query.MaxRequestLength <= 0 {
		c.Query.MaxRequestLength = constants.MaxQueryRequestLength
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("PROMOSMS_GATEWAY_URL"); url != "" {
		c.Gateway.URL = url
	}
	if path := os.Getenv("PROMOSMS_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if addr := os.Getenv("PROMOSMS_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
		c.Redis.Enabled = true
	}
	if password := os.Getenv("PROMOSMS_REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if url := os.Getenv("PROMOSMS_AI_BASE_URL"); url != "" {
		c.AI.BaseURL = url
	}
	if port := os.Getenv("PROMOSMS_SERVER_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil && parsed > 0 {
			c.Server.Port = parsed
		}
	}
	if level := os.Getenv("PROMOSMS_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
