package storage

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestEncodeDecodeGenesRoundTrips(t *testing.T) {
	genes := types.Genes{
		EntryMcapMin:         1000,
		EntryMcapMax:         50000,
		BuyPatterns:          []string{"early_momentum"},
		WhaleWallets:         []string{"w1"},
		TakeProfitMultiplier: 3.5,
		StopLossMultiplier:   0.5,
		SellSignals:          types.SellSignals{MomentumReversal: true, VolumeDry: true, HoldersDumping: true},
		InvestmentPercent:    0.25,
	}

	data, err := EncodeGenes(genes)
	if err != nil {
		t.Fatalf("EncodeGenes() error = %v", err)
	}
	got, err := DecodeGenes(data)
	if err != nil {
		t.Fatalf("DecodeGenes() error = %v", err)
	}
	if got.TakeProfitMultiplier != genes.TakeProfitMultiplier || got.EntryMcapMax != genes.EntryMcapMax {
		t.Fatalf("DecodeGenes() = %+v, want round trip of %+v", got, genes)
	}
	if len(got.BuyPatterns) != 1 || got.BuyPatterns[0] != "early_momentum" {
		t.Fatalf("DecodeGenes() buyPatterns = %v, want [early_momentum]", got.BuyPatterns)
	}
}

func TestDecodeGenesRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{"version":1,"entryMcapMin":1,"unexpectedField":true}`)
	if _, err := DecodeGenes(raw); err == nil {
		t.Fatal("DecodeGenes() error = nil, want error for an unknown field")
	}
}

func TestDecodeGenesRejectsWrongSchemaVersion(t *testing.T) {
	raw := []byte(`{"version":2,"entryMcapMin":1}`)
	if _, err := DecodeGenes(raw); err == nil {
		t.Fatal("DecodeGenes() error = nil, want error for a mismatched schema version")
	}
}

func TestEncodeDecodePerformanceRoundTrips(t *testing.T) {
	perf := types.Performance{
		TradesExecuted: 12,
		WinRate:        0.6,
		TotalPnL:       3.2,
		SharpeRatio:    1.1,
		MaxDrawdown:    0.2,
		AvgHoldTime:    45 * time.Minute,
		FitnessScore:   72.5,
	}

	data, err := EncodePerformance(perf)
	if err != nil {
		t.Fatalf("EncodePerformance() error = %v", err)
	}
	got, err := DecodePerformance(data)
	if err != nil {
		t.Fatalf("DecodePerformance() error = %v", err)
	}
	if got != perf {
		t.Fatalf("DecodePerformance() = %+v, want %+v", got, perf)
	}
}

func TestDecodePerformanceRejectsWrongSchemaVersion(t *testing.T) {
	raw := []byte(`{"version":99,"tradesExecuted":1}`)
	if _, err := DecodePerformance(raw); err == nil {
		t.Fatal("DecodePerformance() error = nil, want error for a mismatched schema version")
	}
}
