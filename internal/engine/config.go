package engine

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable of the lifecycle engine. Zero values are not
// usable; construct via DefaultConfig or LoadConfig and override.
type Config struct {
	Issuer   string   // iss claim on issued access tokens
	Audience []string // aud claim on issued access tokens

	AccessTTL        time.Duration // access-token lifetime (default: 15m)
	RefreshTTL       time.Duration // refresh-token lifetime (default: 720h)
	RefreshRetention time.Duration // how long expired refresh records are kept for forensics (default: 168h)

	SessionLifetime    time.Duration // absolute session lifetime (default: 24h)
	IdleTimeout        time.Duration // max inactivity before a session stops validating (default: 30m)
	SlidingExpiration  bool          // extend expiry on activity (default: true)
	RefreshThreshold   time.Duration // only extend when remaining lifetime drops below this (default: 6h)
	MaxSessionsPerUser int           // concurrent-session cap, 0 disables (default: 5)

	MaxFailedAttempts  int           // failures within the window before locking (default: 5)
	FailureWindow      time.Duration // rolling window for the failure counter (default: 15m)
	LockoutDuration    time.Duration // base lock duration (default: 15m)
	ProgressiveLockout bool          // double the lock per consecutive lockout (default: true)
	MaxLockoutDuration time.Duration // cap for progressive backoff (default: 24h)
	ResetOnSuccess     bool          // clear counter and lock on successful login (default: true)
	ThrottleRPS        float64       // per-identity attempt rate before the store is consulted (default: 1)
	ThrottleBurst      int           // per-identity burst allowance (default: 5)

	ChallengeTTL         time.Duration // MFA challenge validity (default: 5m)
	MaxChallengeAttempts int           // failed MFA verifications before the challenge is destroyed (default: 5)
	BackupCodeCount      int           // codes minted per issuance (default: 10)

	HousekeepingInterval time.Duration // background sweep cadence (default: 1h)
}

func DefaultConfig() Config {
	return Config{
		Issuer:               "gatehouse",
		AccessTTL:            15 * time.Minute,
		RefreshTTL:           720 * time.Hour,
		RefreshRetention:     168 * time.Hour,
		SessionLifetime:      24 * time.Hour,
		IdleTimeout:          30 * time.Minute,
		SlidingExpiration:    true,
		RefreshThreshold:     6 * time.Hour,
		MaxSessionsPerUser:   5,
		MaxFailedAttempts:    5,
		FailureWindow:        15 * time.Minute,
		LockoutDuration:      15 * time.Minute,
		ProgressiveLockout:   true,
		MaxLockoutDuration:   24 * time.Hour,
		ResetOnSuccess:       true,
		ThrottleRPS:          1,
		ThrottleBurst:        5,
		ChallengeTTL:         5 * time.Minute,
		MaxChallengeAttempts: 5,
		BackupCodeCount:      10,
		HousekeepingInterval: 1 * time.Hour,
	}
}

// LoadConfig reads overrides from GATEHOUSE_* environment variables on top of
// the defaults.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.Issuer = getEnvOrDefault("GATEHOUSE_ISSUER", cfg.Issuer)
	if aud := os.Getenv("GATEHOUSE_AUDIENCE"); aud != "" {
		cfg.Audience = splitAndTrim(aud)
	}

	cfg.AccessTTL = getEnvDurationOrDefault("GATEHOUSE_ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = getEnvDurationOrDefault("GATEHOUSE_REFRESH_TTL", cfg.RefreshTTL)
	cfg.RefreshRetention = getEnvDurationOrDefault("GATEHOUSE_REFRESH_RETENTION", cfg.RefreshRetention)

	cfg.SessionLifetime = getEnvDurationOrDefault("GATEHOUSE_SESSION_LIFETIME", cfg.SessionLifetime)
	cfg.IdleTimeout = getEnvDurationOrDefault("GATEHOUSE_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.SlidingExpiration = getEnvBoolOrDefault("GATEHOUSE_SLIDING_EXPIRATION", cfg.SlidingExpiration)
	cfg.RefreshThreshold = getEnvDurationOrDefault("GATEHOUSE_REFRESH_THRESHOLD", cfg.RefreshThreshold)
	cfg.MaxSessionsPerUser = getEnvIntOrDefault("GATEHOUSE_MAX_SESSIONS_PER_USER", cfg.MaxSessionsPerUser)

	cfg.MaxFailedAttempts = getEnvIntOrDefault("GATEHOUSE_MAX_FAILED_ATTEMPTS", cfg.MaxFailedAttempts)
	cfg.FailureWindow = getEnvDurationOrDefault("GATEHOUSE_FAILURE_WINDOW", cfg.FailureWindow)
	cfg.LockoutDuration = getEnvDurationOrDefault("GATEHOUSE_LOCKOUT_DURATION", cfg.LockoutDuration)
	cfg.ProgressiveLockout = getEnvBoolOrDefault("GATEHOUSE_PROGRESSIVE_LOCKOUT", cfg.ProgressiveLockout)
	cfg.MaxLockoutDuration = getEnvDurationOrDefault("GATEHOUSE_MAX_LOCKOUT_DURATION", cfg.MaxLockoutDuration)
	cfg.ResetOnSuccess = getEnvBoolOrDefault("GATEHOUSE_RESET_ON_SUCCESS", cfg.ResetOnSuccess)

	cfg.ChallengeTTL = getEnvDurationOrDefault("GATEHOUSE_CHALLENGE_TTL", cfg.ChallengeTTL)
	cfg.MaxChallengeAttempts = getEnvIntOrDefault("GATEHOUSE_MAX_CHALLENGE_ATTEMPTS", cfg.MaxChallengeAttempts)
	cfg.BackupCodeCount = getEnvIntOrDefault("GATEHOUSE_BACKUP_CODE_COUNT", cfg.BackupCodeCount)

	cfg.HousekeepingInterval = getEnvDurationOrDefault("GATEHOUSE_HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)

	return cfg
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
