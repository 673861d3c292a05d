package config

import "time"

// ContainmentTieBreak selects which frame wins when several frames contain the drop point.
type ContainmentTieBreak string

const (
	// TieBreakFirstMatch picks the first containing frame in node insertion order.
	TieBreakFirstMatch ContainmentTieBreak = "first_match"
	// TieBreakSmallestArea picks the containing frame with the smallest area.
	TieBreakSmallestArea ContainmentTieBreak = "smallest_area"
)

// DomainConfig holds all configurable canvas rules and constraints
type DomainConfig struct {
	// Graph constraints
	MaxNodesPerDocument int
	MaxEdgesPerDocument int
	DefaultTitle        string
	DuplicateOffset     float64

	// History
	HistoryLimit int

	// Containment
	ContainmentTieBreak ContainmentTieBreak

	// Freehand
	MinDoodleSize       float64
	PenSize             float64
	HighlighterSize     float64
	PenThinning         float64
	HighlighterThinning float64
	HighlighterOpacity  float64
	DefaultPenColor     string

	// Sync
	SaveDebounce        time.Duration
	MaxSaveRetries      int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	// Theme used to compute default node colors
	Theme string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerDocument: 10000,
		MaxEdgesPerDocument: 50000,
		DefaultTitle:        "Untitled board",
		DuplicateOffset:     20,

		HistoryLimit: 50,

		ContainmentTieBreak: TieBreakFirstMatch,

		MinDoodleSize:       10,
		PenSize:             4,
		HighlighterSize:     16,
		PenThinning:         0,
		HighlighterThinning: 0.5,
		HighlighterOpacity:  0.4,
		DefaultPenColor:     "#1e1e1e",

		SaveDebounce:        1200 * time.Millisecond,
		MaxSaveRetries:      5,
		RetryInitialBackoff: 500 * time.Millisecond,
		RetryMaxBackoff:     30 * time.Second,

		Theme: "light",
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxNodesPerDocument = 5000
	config.MaxEdgesPerDocument = 25000

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxNodesPerDocument = 100000
	config.MaxEdgesPerDocument = 500000
	config.MaxSaveRetries = 2

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
