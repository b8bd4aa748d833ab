package config

import "time"

const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultPGMaxConns      = 5
	DefaultPGMinConns      = 1
	DefaultLockRetry       = 50 * time.Millisecond
	DefaultRetryMaxElapsed = 3 * time.Second
)
