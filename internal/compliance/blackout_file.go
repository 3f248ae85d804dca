package compliance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/twequity/trading-engine/pkg/types"
	"github.com/twequity/trading-engine/pkg/utils"
)

// blackoutFile is the on-disk earnings calendar operators maintain:
//
//	blackouts:
//	  - symbol: 2330.TW
//	    earnings_date: 2024-04-18
type blackoutFile struct {
	Blackouts []blackoutEntry `yaml:"blackouts"`
}

type blackoutEntry struct {
	Symbol       string `yaml:"symbol"`
	EarningsDate string `yaml:"earnings_date"`
}

// LoadBlackoutFile parses a YAML earnings calendar into the rows the
// guard and storage consume. Dates are "YYYY-MM-DD" interpreted in loc.
func LoadBlackoutFile(path string, loc *time.Location) ([]types.EarningsBlackoutDate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compliance: read blackout file: %w", err)
	}
	var f blackoutFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("compliance: parse blackout file %s: %w", path, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	out := make([]types.EarningsBlackoutDate, 0, len(f.Blackouts))
	for _, e := range f.Blackouts {
		if e.Symbol == "" {
			return nil, fmt.Errorf("compliance: blackout entry with empty symbol in %s", path)
		}
		d, err := time.ParseInLocation("2006-01-02", e.EarningsDate, loc)
		if err != nil {
			return nil, fmt.Errorf("compliance: blackout date for %s: %w", e.Symbol, err)
		}
		out = append(out, types.EarningsBlackoutDate{
			Symbol:       utils.FormatSymbol(e.Symbol),
			EarningsDate: d,
		})
	}
	return out, nil
}
