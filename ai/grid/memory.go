package grid

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// MemoryGrid is an in-process Capability implementation. It backs unit tests
// and local runs where no spreadsheet frontend is attached.
type MemoryGrid struct {
	mu    sync.RWMutex
	cells State
}

// NewMemoryGrid creates an empty in-memory grid.
func NewMemoryGrid() *MemoryGrid {
	return &MemoryGrid{cells: State{}}
}

// Seed replaces the grid content. Intended for test setup.
func (g *MemoryGrid) Seed(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = s.Clone()
}

// GetState returns a snapshot copy of the grid.
func (g *MemoryGrid) GetState() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells.Clone()
}

// Apply executes one typed command against the grid.
func (g *MemoryGrid) Apply(cmd Command) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch c := cmd.(type) {
	case WriteCell:
		g.cells[c.Ref] = Cell{Value: c.Value, Type: classifyValue(c.Value)}
	case SetFormula:
		g.cells[c.Ref] = Cell{Formula: c.Expr, Value: "", Type: CellTypeFormula}
	case FormatRange:
		// Formatting carries no value change; cells in range must exist.
		for _, ref := range expandRange(c.Range) {
			if _, ok := g.cells[ref]; !ok {
				g.cells[ref] = Cell{Type: CellTypeEmpty}
			}
		}
	case LinkCell:
		g.cells[c.Ref] = Cell{Value: c.Value + " (" + c.URL + ")", Type: CellTypeText}
	case nil:
		return errors.New("nil command")
	default:
		return errors.Errorf("unsupported command type %T", cmd)
	}
	return nil
}

func classifyValue(v string) CellType {
	if v == "" {
		return CellTypeEmpty
	}
	if strings.HasPrefix(v, "#") || strings.EqualFold(v, "ERROR") {
		return CellTypeError
	}
	cleaned := strings.TrimSuffix(strings.ReplaceAll(v, ",", ""), "%")
	if _, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return CellTypeNumber
	}
	return CellTypeText
}

// expandRange expands "A1:A3" into individual references. Single refs pass
// through. Only same-column or same-row ranges are expanded; anything else
// returns the endpoints.
func expandRange(rng string) []string {
	parts := strings.SplitN(rng, ":", 2)
	if len(parts) == 1 {
		return parts
	}
	c1, r1, ok1 := splitRef(parts[0])
	c2, r2, ok2 := splitRef(parts[1])
	if !ok1 || !ok2 {
		return parts
	}
	var refs []string
	switch {
	case c1 == c2:
		lo, hi := minmax(r1, r2)
		for r := lo; r <= hi; r++ {
			refs = append(refs, c1+strconv.Itoa(r))
		}
	case r1 == r2 && len(c1) == 1 && len(c2) == 1:
		lo, hi := minmax(int(c1[0]), int(c2[0]))
		for c := lo; c <= hi; c++ {
			refs = append(refs, string(rune(c))+strconv.Itoa(r1))
		}
	default:
		refs = parts
	}
	return refs
}

func splitRef(ref string) (col string, row int, ok bool) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(ref) {
		return "", 0, false
	}
	row, err := strconv.Atoi(ref[i:])
	if err != nil {
		return "", 0, false
	}
	return ref[:i], row, true
}

func minmax(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
