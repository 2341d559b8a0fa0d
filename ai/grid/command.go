package grid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Command is one member of the closed command set the learning core can
// issue against a grid. Commands round-trip through a stable text form so
// they can be persisted alongside experiences and re-parsed on retrieval.
type Command interface {
	// Text renders the canonical text form of the command.
	Text() string
}

// WriteCell writes a literal value into one cell.
type WriteCell struct {
	Ref   string
	Value string
}

func (c WriteCell) Text() string { return fmt.Sprintf("set %s %s", c.Ref, c.Value) }

// SetFormula installs a formula expression into one cell.
type SetFormula struct {
	Ref  string
	Expr string
}

func (c SetFormula) Text() string { return fmt.Sprintf("formula %s %s", c.Ref, c.Expr) }

// FormatRange applies a named format to a cell range.
type FormatRange struct {
	Range string
	Kind  string
}

func (c FormatRange) Text() string { return fmt.Sprintf("format %s %s", c.Range, c.Kind) }

// LinkCell writes a value with an attached hyperlink.
type LinkCell struct {
	Ref   string
	Value string
	URL   string
}

func (c LinkCell) Text() string { return fmt.Sprintf("link %s %s %s", c.Ref, c.Value, c.URL) }

var (
	cellRefPattern   = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9]{1,3}$`)
	cellRangePattern = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9]{1,3}(:[A-Za-z]{1,2}[0-9]{1,3})?$`)
)

// ValidRef reports whether ref is a well-formed cell reference.
func ValidRef(ref string) bool {
	return cellRefPattern.MatchString(ref)
}

// Parse converts the canonical text form back into a typed command.
// Generated and retrieved actions pass through here before execution, so
// malformed text is rejected instead of being interpreted loosely.
func Parse(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 3 {
		return nil, errors.Errorf("malformed command %q: want <verb> <ref> <args>", text)
	}

	verb, ref := strings.ToLower(fields[0]), normalizeRef(fields[1])
	rest := strings.Join(fields[2:], " ")

	switch verb {
	case "set", "write":
		if !ValidRef(ref) {
			return nil, errors.Errorf("invalid cell reference %q", fields[1])
		}
		return WriteCell{Ref: ref, Value: rest}, nil
	case "formula":
		if !ValidRef(ref) {
			return nil, errors.Errorf("invalid cell reference %q", fields[1])
		}
		return SetFormula{Ref: ref, Expr: rest}, nil
	case "format":
		rng := strings.ToUpper(fields[1])
		if !cellRangePattern.MatchString(rng) {
			return nil, errors.Errorf("invalid range %q", fields[1])
		}
		return FormatRange{Range: rng, Kind: strings.ToLower(rest)}, nil
	case "link":
		if !ValidRef(ref) {
			return nil, errors.Errorf("invalid cell reference %q", fields[1])
		}
		if len(fields) < 4 {
			return nil, errors.Errorf("malformed link command %q: want link <ref> <value> <url>", text)
		}
		return LinkCell{
			Ref:   ref,
			Value: strings.Join(fields[2:len(fields)-1], " "),
			URL:   fields[len(fields)-1],
		}, nil
	default:
		return nil, errors.Errorf("unknown command verb %q", verb)
	}
}

func normalizeRef(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}
