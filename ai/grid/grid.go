// Package grid defines the boundary to the external grid capability: the
// state snapshot shape, the closed set of typed commands the learning core
// may issue, and the dispatcher that executes them.
package grid

import (
	"sort"
	"strings"
)

// CellType describes the interpreted content of a cell.
type CellType string

const (
	CellTypeText    CellType = "text"
	CellTypeNumber  CellType = "number"
	CellTypeFormula CellType = "formula"
	CellTypeError   CellType = "error"
	CellTypeEmpty   CellType = "empty"
)

// Cell is one cell of the grid snapshot.
type Cell struct {
	Value   string   `json:"value"`
	Formula string   `json:"formula,omitempty"`
	Type    CellType `json:"type"`
}

// State is a snapshot of the grid keyed by cell reference ("B2").
// Snapshots are value copies; mutating a State never affects the grid.
type State map[string]Cell

// Capability is the external grid the learning core drives.
// Apply rejects malformed or inapplicable commands with an error.
type Capability interface {
	GetState() State
	Apply(cmd Command) error
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for ref, cell := range s {
		out[ref] = cell
	}
	return out
}

// Serialize renders the state as a compact, deterministic text form used for
// embedding and persistence. Cells are emitted in sorted reference order so
// identical states always serialize identically.
func (s State) Serialize() string {
	if len(s) == 0 {
		return ""
	}
	refs := make([]string, 0, len(s))
	for ref := range s {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	var b strings.Builder
	for i, ref := range refs {
		if i > 0 {
			b.WriteByte('\n')
		}
		cell := s[ref]
		b.WriteString(ref)
		b.WriteByte('=')
		if cell.Formula != "" {
			b.WriteString(cell.Formula)
			b.WriteByte('|')
		}
		b.WriteString(cell.Value)
	}
	return b.String()
}

// Diff returns the references whose cells differ between s and next,
// including cells present on only one side. Order is sorted.
func (s State) Diff(next State) []string {
	changed := map[string]bool{}
	for ref, cell := range s {
		if other, ok := next[ref]; !ok || other != cell {
			changed[ref] = true
		}
	}
	for ref := range next {
		if _, ok := s[ref]; !ok {
			changed[ref] = true
		}
	}
	refs := make([]string, 0, len(changed))
	for ref := range changed {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
