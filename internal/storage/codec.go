package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// genesSchemaVersion is bumped whenever a field is added to or removed
// from encodedGenes. Decoding rejects an unknown version rather than
// guessing at a migration.
const genesSchemaVersion = 1

// performanceSchemaVersion mirrors genesSchemaVersion for Performance.
const performanceSchemaVersion = 1

// encodedGenes is the explicit, closed field list persisted for a
// genome's genes. Per the redesign away from an opaque JSON blob,
// decoding disallows unknown fields so a silently added column never
// passes through unnoticed; a decode failure marks the row invalid
// rather than panicking at startup.
type encodedGenes struct {
	Version int `json:"version"`

	EntryMcapMin      float64              `json:"entryMcapMin"`
	EntryMcapMax      float64              `json:"entryMcapMax"`
	EntryVolumeMin    float64              `json:"entryVolumeMin"`
	SocialSignals     types.SocialSignals  `json:"socialSignals"`
	BuyPatterns       []string             `json:"buyPatterns"`
	WhaleWallets      []string             `json:"whaleWallets"`
	TokenNameKeywords []string             `json:"tokenNameKeywords"`

	TakeProfitMultiplier float64 `json:"takeProfitMultiplier"`
	StopLossMultiplier   float64 `json:"stopLossMultiplier"`
	TimeBasedExit        float64 `json:"timeBasedExit"`
	VolumeDropExit       float64 `json:"volumeDropExit"`

	SellSignals  types.SellSignals `json:"sellSignals"`
	SellPatterns []string          `json:"sellPatterns"`

	InvestmentPercent        float64 `json:"investmentPercent"`
	MaxSimultaneousPositions int     `json:"maxSimultaneousPositions"`
	MaxDrawdown              float64 `json:"maxDrawdown"`
	Diversification          float64 `json:"diversification"`
}

// EncodeGenes serializes Genes to its stable, versioned form.
func EncodeGenes(g types.Genes) ([]byte, error) {
	e := encodedGenes{
		Version:                  genesSchemaVersion,
		EntryMcapMin:             g.EntryMcapMin,
		EntryMcapMax:             g.EntryMcapMax,
		EntryVolumeMin:           g.EntryVolumeMin,
		SocialSignals:            g.SocialSignals,
		BuyPatterns:              g.BuyPatterns,
		WhaleWallets:             g.WhaleWallets,
		TokenNameKeywords:        g.TokenNameKeywords,
		TakeProfitMultiplier:     g.TakeProfitMultiplier,
		StopLossMultiplier:       g.StopLossMultiplier,
		TimeBasedExit:            g.TimeBasedExit,
		VolumeDropExit:           g.VolumeDropExit,
		SellSignals:              g.SellSignals,
		SellPatterns:             g.SellPatterns,
		InvestmentPercent:        g.InvestmentPercent,
		MaxSimultaneousPositions: g.MaxSimultaneousPositions,
		MaxDrawdown:              g.MaxDrawdown,
		Diversification:          g.Diversification,
	}
	return json.Marshal(e)
}

// DecodeGenes parses the stable form, rejecting unknown fields and
// unrecognized schema versions.
func DecodeGenes(data []byte) (types.Genes, error) {
	var e encodedGenes
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return types.Genes{}, fmt.Errorf("decode genes: %w", err)
	}
	if e.Version != genesSchemaVersion {
		return types.Genes{}, fmt.Errorf("decode genes: unsupported schema version %d", e.Version)
	}
	return types.Genes{
		EntryMcapMin:             e.EntryMcapMin,
		EntryMcapMax:             e.EntryMcapMax,
		EntryVolumeMin:           e.EntryVolumeMin,
		SocialSignals:            e.SocialSignals,
		BuyPatterns:              e.BuyPatterns,
		WhaleWallets:             e.WhaleWallets,
		TokenNameKeywords:        e.TokenNameKeywords,
		TakeProfitMultiplier:     e.TakeProfitMultiplier,
		StopLossMultiplier:       e.StopLossMultiplier,
		TimeBasedExit:            e.TimeBasedExit,
		VolumeDropExit:           e.VolumeDropExit,
		SellSignals:              e.SellSignals,
		SellPatterns:             e.SellPatterns,
		InvestmentPercent:        e.InvestmentPercent,
		MaxSimultaneousPositions: e.MaxSimultaneousPositions,
		MaxDrawdown:              e.MaxDrawdown,
		Diversification:          e.Diversification,
	}, nil
}

type encodedPerformance struct {
	Version        int     `json:"version"`
	TradesExecuted int     `json:"tradesExecuted"`
	WinRate        float64 `json:"winRate"`
	TotalPnL       float64 `json:"totalPnL"`
	SharpeRatio    float64 `json:"sharpeRatio"`
	MaxDrawdown    float64 `json:"maxDrawdown"`
	AvgHoldTimeNs  int64   `json:"avgHoldTimeNs"`
	FitnessScore   float64 `json:"fitnessScore"`
}

// EncodePerformance serializes Performance to its stable, versioned
// form.
func EncodePerformance(p types.Performance) ([]byte, error) {
	e := encodedPerformance{
		Version:        performanceSchemaVersion,
		TradesExecuted: p.TradesExecuted,
		WinRate:        p.WinRate,
		TotalPnL:       p.TotalPnL,
		SharpeRatio:    p.SharpeRatio,
		MaxDrawdown:    p.MaxDrawdown,
		AvgHoldTimeNs:  int64(p.AvgHoldTime),
		FitnessScore:   p.FitnessScore,
	}
	return json.Marshal(e)
}

// DecodePerformance parses the stable form, rejecting unknown fields
// and unrecognized schema versions.
func DecodePerformance(data []byte) (types.Performance, error) {
	var e encodedPerformance
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return types.Performance{}, fmt.Errorf("decode performance: %w", err)
	}
	if e.Version != performanceSchemaVersion {
		return types.Performance{}, fmt.Errorf("decode performance: unsupported schema version %d", e.Version)
	}
	return types.Performance{
		TradesExecuted: e.TradesExecuted,
		WinRate:        e.WinRate,
		TotalPnL:       e.TotalPnL,
		SharpeRatio:    e.SharpeRatio,
		MaxDrawdown:    e.MaxDrawdown,
		AvgHoldTime:    time.Duration(e.AvgHoldTimeNs),
		FitnessScore:   e.FitnessScore,
	}, nil
}
