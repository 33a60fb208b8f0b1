// Package model dispatches a parsed trace to the consistency-model engine
// that decides it: internal/engine for SC/TSO/PSO/WMO, internal/valorder
// for POW.
package model

import (
	"fmt"
	"strings"

	"github.com/go-axe/axe/internal/engine"
	"github.com/go-axe/axe/internal/instr"
	"github.com/go-axe/axe/internal/trace"
	"github.com/go-axe/axe/internal/valorder"
)

// Model identifies one of the five consistency models the checker
// decides admission for.
type Model int

const (
	SC Model = iota
	TSO
	PSO
	WMO
	POW
)

func (m Model) String() string {
	switch m {
	case SC:
		return "SC"
	case TSO:
		return "TSO"
	case PSO:
		return "PSO"
	case WMO:
		return "WMO"
	case POW:
		return "POW"
	default:
		return "?"
	}
}

// ParseModel parses a model name case-insensitively.
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SC":
		return SC, nil
	case "TSO":
		return TSO, nil
	case "PSO":
		return PSO, nil
	case "WMO":
		return WMO, nil
	case "POW":
		return POW, nil
	default:
		return 0, fmt.Errorf("unknown consistency model %q (want SC, TSO, PSO, WMO, or POW)", s)
	}
}

// Options configures model-independent checking behavior.
type Options struct {
	// IgnoreTimestamps drops begin/end timestamps before analysis (the
	// CLI's -i flag).
	IgnoreTimestamps bool
	// GlobalClock enables POW's sync-time edges (the CLI's -g flag); a
	// no-op for the other models.
	GlobalClock bool
}

// Check canonicalizes raw into a Trace and decides whether model admits
// it. A non-nil error means the input itself was invalid (a parse or
// validation failure) — distinct from a false/nil result, which means the
// model rejected an otherwise-valid trace, reported as NO, not an error.
func Check(m Model, raw []instr.Instr, opts Options) (bool, error) {
	if opts.IgnoreTimestamps {
		raw = stripTimestamps(raw)
	}

	tr, err := trace.New(raw)
	if err != nil {
		return false, err
	}

	if m == POW {
		return valorder.New(tr, valorder.Options{GlobalClock: opts.GlobalClock}).Check(), nil
	}
	return engine.New(tr, m.String()).Check(), nil
}

func stripTimestamps(raw []instr.Instr) []instr.Instr {
	out := make([]instr.Instr, len(raw))
	for i, in := range raw {
		in.BeginTime = instr.NoTime
		in.EndTime = instr.NoTime
		out[i] = in
	}
	return out
}
