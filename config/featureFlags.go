package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// MissingPricePolicy decides what happens to a shift line whose work item has
// no price for the worker's pay-category.
type MissingPricePolicy string

const (
	MissingPriceZero   MissingPricePolicy = "zero"
	MissingPriceFlag   MissingPricePolicy = "flag"
	MissingPriceReject MissingPricePolicy = "reject"
)

// GetMissingPricePolicy reads MISSING_PRICE_POLICY (zero|flag|reject). Unknown values fall back to zero.
func GetMissingPricePolicy() MissingPricePolicy {
	switch MissingPricePolicy(strings.ToLower(strings.TrimSpace(os.Getenv("MISSING_PRICE_POLICY")))) {
	case MissingPriceFlag:
		return MissingPriceFlag
	case MissingPriceReject:
		return MissingPriceReject
	default:
		return MissingPriceZero
	}
}

// WorkerLockTTL is how long the per-worker check-then-write lock is held at most.
//
// Set via env:
// - WORKER_LOCK_TTL_SECONDS=30
func WorkerLockTTL() time.Duration {
	v := strings.TrimSpace(os.Getenv("WORKER_LOCK_TTL_SECONDS"))
	if v == "" {
		return 30 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 30 * time.Second
	}
	return time.Duration(n) * time.Second
}

// NotificationSender selects the push transport: "pubsub" (default when
// NOTIFICATION_TOPIC is set) or "log".
func NotificationSender() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFICATION_SENDER")))
	if v == "log" || v == "pubsub" {
		return v
	}
	if strings.TrimSpace(os.Getenv("NOTIFICATION_TOPIC")) != "" {
		return "pubsub"
	}
	return "log"
}

// AppBaseURL prefixes notification links. Empty keeps them relative.
func AppBaseURL() string {
	return strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/")
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SkipMigrations disables AutoMigrate on startup.
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}
