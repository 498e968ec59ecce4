package constants

import "time"

const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultTimeout        = 10 * time.Second

	ContextTokenData = "token_data"
	HeaderUpdateAll  = "update-all"
	HeaderDeleteAll  = "delete-all"
)

// Database pool
const (
	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 10
	DatabaseConnMaxLifetime = 30 // minutes
)

// Cache keys
const (
	TokenBlacklistPrefix = "token:blacklist:"
	TokenBlacklistTTL    = 24 * time.Hour
)

// Roles that may manage any class.
const (
	RoleAdmin      = "admin"
	RoleClassAdmin = "classAdmin"
)

// Class scheduling limits
const (
	MaxOccurrences     = 48
	MaxUntilWeeksAhead = 24
	DefaultTimeZone    = "Asia/Kolkata"
	DefaultPageSize    = 20
)
