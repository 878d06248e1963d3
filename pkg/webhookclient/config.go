package webhookclient

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Endpoint string
	Secret   string

	Timeout time.Duration

	RetryCount int
	RetryDelay time.Duration

	RateLimit int
	RateBurst int

	CircuitBreakerEnabled bool
	CBFailureThreshold    int
	CBRecoveryTime        time.Duration
	CBMinRequests         int
	CBSamplingDuration    time.Duration
	CBHalfOpenMaxSuccess  int
}

func LoadFromEnv() Config {
	return Config{
		Endpoint: os.Getenv("WEBHOOK_ENDPOINT"),
		Secret:   os.Getenv("WEBHOOK_SECRET"),

		Timeout: time.Second * time.Duration(getInt("WEBHOOK_TIMEOUT", 15)),

		RetryCount: getInt("WEBHOOK_RETRY_COUNT", 3),
		RetryDelay: time.Second * time.Duration(getInt("WEBHOOK_RETRY_DELAY", 2)),

		RateLimit: getInt("WEBHOOK_RATE_LIMIT", 120),
		RateBurst: getInt("WEBHOOK_RATE_BURST", 5),

		CircuitBreakerEnabled: getBool("WEBHOOK_ENABLE_CIRCUIT_BREAKER", true),
		CBFailureThreshold:    getInt("WEBHOOK_CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
		CBRecoveryTime:        time.Second * time.Duration(getInt("WEBHOOK_CIRCUIT_BREAKER_RECOVERY_TIME", 60)),
		CBMinRequests:         getInt("WEBHOOK_CIRCUIT_BREAKER_MIN_REQUESTS", 10),
		CBSamplingDuration:    time.Second * time.Duration(getInt("WEBHOOK_CIRCUIT_BREAKER_SAMPLING_DURATION", 60)),
		CBHalfOpenMaxSuccess:  getInt("WEBHOOK_CIRCUIT_BREAKER_HALF_OPEN_MAX_SUCCESS", 3),
	}
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		return v == "true"
	}
	return def
}
