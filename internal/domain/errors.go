package domain

import (
	"fmt"
	"time"
)

// ConfigurationError reports a malformed LevelPlan. It is raised before any
// persistence or simulation; normal market outcomes (stop hit, expiry, entry
// skip) are events, never errors.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("plan configuration: %s: %s", e.Field, e.Reason)
}

// DataGapError reports a missing session bar inside the simulation window.
// The caller must backfill the series before simulating.
type DataGapError struct {
	Symbol  string
	Missing time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap: %s missing bar for %s", e.Symbol, e.Missing.Format("2006-01-02"))
}
