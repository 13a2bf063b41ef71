package extractor

import (
	"fmt"
	"strings"
)

// Strategy selects how images are pulled out of a page
type Strategy int

const (
	// StrategyEmbedded decodes the raster objects stored inside the page
	StrategyEmbedded Strategy = iota
	// StrategyFullPage renders the whole page to a single bitmap
	StrategyFullPage
	// StrategySegmented renders the page and crops each connected region of content
	StrategySegmented
)

// Strategies lists every strategy in the order they run on a page
var Strategies = []Strategy{StrategyEmbedded, StrategyFullPage, StrategySegmented}

func (s Strategy) String() string {
	switch s {
	case StrategyEmbedded:
		return "embedded"
	case StrategyFullPage:
		return "full-page"
	case StrategySegmented:
		return "segmented"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// MarshalText lets strategies appear by name in JSON
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a strategy name
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy parses a single strategy name. A few aliases are accepted.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "embedded", "embed", "objects":
		return StrategyEmbedded, nil
	case "full-page", "fullpage", "page", "full":
		return StrategyFullPage, nil
	case "segmented", "segment", "regions", "contours":
		return StrategySegmented, nil
	default:
		return 0, fmt.Errorf("unknown extraction strategy %q", name)
	}
}

// ParseStrategies parses a comma separated list such as "embedded,full-page".
// Duplicates are dropped and the result is in execution order.
func ParseStrategies(list string) ([]Strategy, error) {
	seen := make(map[Strategy]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseStrategy(part)
		if err != nil {
			return nil, err
		}
		seen[s] = true
	}
	var result []Strategy
	for _, s := range Strategies {
		if seen[s] {
			result = append(result, s)
		}
	}
	return result, nil
}

// ZoomToDPI converts a zoom multiplier (1x = 72 dpi) into a DPI value
func ZoomToDPI(zoom float64) float64 {
	return zoom * 72
}
