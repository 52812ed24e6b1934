package models

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

type Config struct {
	LogLevel string          `json:"log_level"`
	Server   ServerConfig    `json:"server"`
	Database DatabaseConfig  `json:"database"`
	Gateway  GatewayConfig   `json:"gateway"`
	AI       AIConfig        `json:"ai"`
	Redis    RedisConfig     `json:"redis"`
	Dispatch DispatchConfig  `json:"dispatch"`
	SMS      SMSConfig       `json:"sms"`
	Query    QueryConfig     `json:"query"`
	Tracing  TracingSettings `json:"tracing"`
}

type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"read_timeout_sec"`
	WriteTimeoutSec int `json:"write_timeout_sec"`
	IdleTimeoutSec  int `json:"idle_timeout_sec"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// GatewayConfig carries the static identity fields the SMS gateway expects
// on every submission.
type GatewayConfig struct {
	URL           string `json:"url"`
	SysID         string `json:"sys_id"`
	SrcAddress    string `json:"src_address"`
	DRFlag        bool   `json:"dr_flag"`
	FirstFailFlag bool   `json:"first_fail_flag"`
	TimeoutSec    int    `json:"timeout_sec"`
}

// AIConfig points at an OpenAI-compatible chat completion endpoint.
// The API key is only ever read from the environment.
type AIConfig struct {
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeout_sec"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	TTLHours int    `json:"ttl_hours"`
}

type DispatchConfig struct {
	IntervalSec    int `json:"interval_sec"`
	SendTimeoutSec int `json:"send_timeout_sec"`
	MaxConcurrent  int `json:"max_concurrent"`
	BatchSize      int `json:"batch_size"`
}

type SMSConfig struct {
	MaxLength int    `json:"max_length"`
	Brand     string `json:"brand"`
}

type QueryConfig struct {
	LimitCeiling     int `json:"limit_ceiling"`
	MaxRequestLength int `json:"max_request_length"`
}

type TracingSettings struct {
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
}
