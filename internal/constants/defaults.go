package constants

// Default dispatch configuration values
const (
	DefaultDispatchIntervalSec = 60
	DefaultSendTimeoutSec      = 30
	DefaultMaxConcurrentSends  = 5
	DefaultClaimBatchSize      = 100
)

// Message limits
const (
	DefaultSMSMaxLength  = 70
	ExtendedSMSMaxLength = 140
	MinRecipientDigits   = 10
)

// Query configuration
const (
	DefaultQueryLimitCeiling = 200
	MaxQueryRequestLength    = 500
	DefaultTranslationTTLHrs = 24
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultGatewayTimeoutSec     = 30
	DefaultAITimeoutSec          = 60
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultServerPort            = 8080
	ServerErrorChannelSize       = 1
)

// Encryption parameters for recipient numbers at rest
const (
	EncryptionSalt = "promosms-recipient-salt-v1"
)

// Gateway result codes outside the gateway's own vocabulary
const (
	GatewayCodeAccepted = "00000"
	CodeTimeout         = "TIMEOUT"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeHTTPError       = "HTTP_ERROR"
)
