package engine

import (
	"sort"
	"strings"

	"tax-uncertainty/internal/errors"
)

// Phase is one analysis block. Phases always run in declaration order.
type Phase int

const (
	PhaseBias        Phase = iota // misperceived rate loss curve
	PhaseUncertainty              // loss versus signal sd
	PhaseTwoWorker                // two-worker planner
	PhaseOptimalTax               // optimal tax versus sd
)

var phaseNames = []string{"bias", "uncertainty", "two_worker", "optimal_tax"}

// String returns the phase name
func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// AllPhases returns every phase in run order
func AllPhases() []Phase {
	return []Phase{PhaseBias, PhaseUncertainty, PhaseTwoWorker, PhaseOptimalTax}
}

// ParsePhase looks up a phase by name
func ParsePhase(name string) (Phase, error) {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), nil
		}
	}
	return 0, errors.Newf(errors.TypeInput, "unknown phase %q (want one of %s)", name, strings.Join(phaseNames, ", "))
}

// sortPhases returns phases deduplicated in run order
func sortPhases(phases []Phase) []Phase {
	seen := make(map[Phase]bool, len(phases))
	out := make([]Phase, 0, len(phases))
	for _, p := range phases {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
