package models

// AES-GCM parameters for recipient-number encryption at rest.
const (
	NonceSize  = 12
	KeySize    = 32
	Iterations = 100000
)
