// Package utils provides small, dependency-light helpers shared across
// the simulator: id generation, clamping, and retry/batch helpers.
package utils

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GenerateID generates a unique id with an optional prefix.
func GenerateID(prefix string) string {
	b := make([]byte, 16)
	_, _ = crand.Read(b)
	id := hex.EncodeToString(b)
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateGenomeID generates a unique strategy genome id.
func GenerateGenomeID() string { return GenerateID("gen") }

// GenerateTradeID generates a unique trade id.
func GenerateTradeID() string { return GenerateID("trd") }

// GenerateCycleID generates a unique evolution cycle id.
func GenerateCycleID() string { return GenerateID("cyc") }

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt restricts v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MinDecimal returns the smaller of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampDecimal restricts value to [min, max].
func ClampDecimal(value, min, max decimal.Decimal) decimal.Decimal {
	if value.LessThan(min) {
		return min
	}
	if value.GreaterThan(max) {
		return max
	}
	return value
}

// MutateByFactor perturbs v by a uniform factor in (1-spread, 1+spread)
// drawn from rng, then clamps the result to [lo, hi]. This is the field
// envelope mutation used by the genetic engine: clamp(v*(1+U(-spread,
// spread)), lo, hi).
func MutateByFactor(rng *rand.Rand, v, spread, lo, hi float64) float64 {
	factor := 1 + (rng.Float64()*2-1)*spread
	return Clamp(v*factor, lo, hi)
}

// FormatMoney formats a decimal amount with a currency suffix/prefix.
func FormatMoney(d decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "USD", "USDT", "USDC":
		return "$" + d.StringFixed(2)
	case "SOL":
		return d.StringFixed(4) + " SOL"
	default:
		return d.String() + " " + currency
	}
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// RetryConfig configures exponential backoff retry.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns sane defaults for transient I/O retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Retry retries fn with exponential backoff until it succeeds or the
// attempt budget is exhausted.
func Retry[T any](config RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	var err error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			return result, nil
		}
		if attempt == config.MaxAttempts {
			break
		}
		time.Sleep(delay)
		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return result, fmt.Errorf("after %d attempts: %w", config.MaxAttempts, err)
}

// BatchProcess processes items in fixed-size batches, collecting results.
func BatchProcess[T any, R any](items []T, batchSize int, fn func([]T) ([]R, error)) ([]R, error) {
	var results []R
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batchResults, err := fn(items[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d failed: %w", i, end, err)
		}
		results = append(results, batchResults...)
	}
	return results, nil
}
