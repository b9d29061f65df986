package utils_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/shopspring/decimal"
)

func TestGenerateIDPrefixAndUniqueness(t *testing.T) {
	a := utils.GenerateID("whale")
	b := utils.GenerateID("whale")
	if a == b {
		t.Fatal("GenerateID() produced the same id twice")
	}
	if len(a) <= len("whale_") {
		t.Fatalf("GenerateID() = %q, too short for a prefixed id", a)
	}
}

func TestClampRestrictsToRange(t *testing.T) {
	if got := utils.Clamp(5, 0, 3); got != 3 {
		t.Errorf("Clamp(5,0,3) = %f, want 3", got)
	}
	if got := utils.Clamp(-5, 0, 3); got != 0 {
		t.Errorf("Clamp(-5,0,3) = %f, want 0", got)
	}
	if got := utils.Clamp(2, 0, 3); got != 2 {
		t.Errorf("Clamp(2,0,3) = %f, want 2", got)
	}
}

func TestClampDecimalRestrictsToRange(t *testing.T) {
	got := utils.ClampDecimal(decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(5))
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("ClampDecimal(10,0,5) = %s, want 5", got)
	}
}

func TestMutateByFactorStaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		got := utils.MutateByFactor(rng, 5, 0.2, 1, 10)
		if got < 1 || got > 10 {
			t.Fatalf("MutateByFactor() = %f, escaped [1,10]", got)
		}
	}
}

func TestFormatMoneyByCurrency(t *testing.T) {
	if got := utils.FormatMoney(decimal.NewFromFloat(12.5), "USD"); got != "$12.50" {
		t.Errorf("FormatMoney(12.5, USD) = %q, want $12.50", got)
	}
	if got := utils.FormatMoney(decimal.NewFromFloat(1.23456), "SOL"); got != "1.2346 SOL" {
		t.Errorf("FormatMoney(1.23456, SOL) = %q, want 1.2346 SOL", got)
	}
}

func TestFormatDurationTiers(t *testing.T) {
	if got := utils.FormatDuration(30 * time.Minute); got != "30m" {
		t.Errorf("FormatDuration(30m) = %q, want 30m", got)
	}
	if got := utils.FormatDuration(90 * time.Minute); got != "1h 30m" {
		t.Errorf("FormatDuration(90m) = %q, want 1h 30m", got)
	}
	if got := utils.FormatDuration(26 * time.Hour); got != "1d 2h 0m" {
		t.Errorf("FormatDuration(26h) = %q, want 1d 2h 0m", got)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}

	result, err := utils.Retry(cfg, func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if result != 42 {
		t.Errorf("Retry() result = %d, want 42", result)
	}
	if attempts != 2 {
		t.Errorf("Retry() made %d attempts, want 2", attempts)
	}
}

func TestRetryExhaustsAttemptsAndReturnsError(t *testing.T) {
	cfg := utils.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	_, err := utils.Retry(cfg, func() (int, error) {
		return 0, errors.New("always fails")
	})
	if err == nil {
		t.Fatal("Retry() error = nil, want an error once attempts are exhausted")
	}
}

func TestBatchProcessSplitsIntoFixedSizeBatches(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var batchSizes []int

	results, err := utils.BatchProcess(items, 2, func(batch []int) ([]int, error) {
		batchSizes = append(batchSizes, len(batch))
		out := make([]int, len(batch))
		for i, v := range batch {
			out[i] = v * 2
		}
		return out, nil
	})
	if err != nil {
		t.Fatalf("BatchProcess() error = %v", err)
	}
	if len(results) != 5 || results[4] != 10 {
		t.Fatalf("BatchProcess() results = %v, want [2 4 6 8 10]", results)
	}
	if len(batchSizes) != 3 || batchSizes[0] != 2 || batchSizes[2] != 1 {
		t.Fatalf("BatchProcess() batch sizes = %v, want [2 2 1]", batchSizes)
	}
}

func TestBatchProcessPropagatesError(t *testing.T) {
	_, err := utils.BatchProcess([]int{1, 2}, 1, func(batch []int) ([]int, error) {
		return nil, errors.New("batch failed")
	})
	if err == nil {
		t.Fatal("BatchProcess() error = nil, want propagated batch error")
	}
}
