package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PairParams holds the regression output of the offline cointegration step for one
// tradable pair: asset2 ~ hedge_ratio * asset1 + constant.
type PairParams struct {
	Asset1     string  `yaml:"asset1"`
	Asset2     string  `yaml:"asset2"`
	HedgeRatio float64 `yaml:"hedge_ratio"`
	Constant   float64 `yaml:"constant"`
	HalfLife   float64 `yaml:"half_life"`
}

// LoadPairs reads the pair parameter file produced by the cointegration scan.
// An empty or missing file is an error: with no pairs there is nothing to trade.
func LoadPairs(path string) ([]PairParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pairs file: %w", err)
	}
	var pairs []PairParams
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("decode pairs yaml: %w", err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("pairs file %s contains no pairs", path)
	}
	for i, p := range pairs {
		if p.Asset1 == "" || p.Asset2 == "" {
			return nil, fmt.Errorf("pair %d missing asset symbols", i)
		}
	}
	return pairs, nil
}

// Symbols returns the deduplicated set of leg symbols across all pairs.
func Symbols(pairs []PairParams) []string {
	seen := make(map[string]struct{}, len(pairs)*2)
	out := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		for _, sym := range []string{p.Asset1, p.Asset2} {
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}
