// Package search models structured hyperparameter search spaces: trees of
// mutually exclusive branches, each with its own numeric or categorical
// parameters.
package search

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Range declares the inclusive bounds of a continuously tunable parameter.
type Range struct {
	Min float64
	Max float64
}

// Branch is one alternative inside a Choice. A nil Sub means the branch has
// no parameters of its own.
type Branch struct {
	Label string
	Sub   *Space
}

// Choice is a set of mutually exclusive branches. Branch order is the
// decoding order: branch i owns [i/n, (i+1)/n), interior boundaries resolve
// to the upper branch and v == 1 to the last branch.
type Choice struct {
	Branches []Branch
}

// Param is either a Range or a Choice, never both.
type Param struct {
	Range  *Range
	Choice *Choice
}

type namedParam struct {
	name  string
	param Param
}

// Space is a group of independently tunable parameters. It is supplied once
// by the caller and read-only for the lifetime of an optimizer.
type Space struct {
	params []namedParam
}

// InvalidSpaceError reports a malformed search space. It is returned before
// any objective evaluation consumes budget.
type InvalidSpaceError struct {
	// Path locates the offending node, e.g. "algorithm=SVM/kernel".
	Path   string
	Reason string
}

func (e *InvalidSpaceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid search space: %s", e.Reason)
	}
	return fmt.Sprintf("invalid search space at %q: %s", e.Path, e.Reason)
}

// NewSpace returns an empty parameter group.
func NewSpace() *Space {
	return &Space{}
}

// AddRange declares a continuous parameter with bounds [min, max].
// It returns the space to allow chaining.
func (s *Space) AddRange(name string, min, max float64) *Space {
	s.params = append(s.params, namedParam{name, Param{Range: &Range{Min: min, Max: max}}})
	return s
}

// AddChoice declares a categorical parameter and returns its Choice so
// branches can be attached.
func (s *Space) AddChoice(name string) *Choice {
	c := &Choice{}
	s.params = append(s.params, namedParam{name, Param{Choice: c}})
	return c
}

// Branch attaches one alternative to the choice. A nil sub space declares a
// branch without further parameters.
func (c *Choice) Branch(label string, sub *Space) *Choice {
	c.Branches = append(c.Branches, Branch{Label: label, Sub: sub})
	return c
}

// Len reports the number of parameters declared directly on the space.
func (s *Space) Len() int {
	return len(s.params)
}

// Validate checks the structural invariants: finite Min < Max on every
// range, unique non-empty branch labels per choice, at least one branch per
// choice, and no parameter name carrying conflicting kinds or appearing in
// positions that could both be active at once.
func (s *Space) Validate() error {
	if s == nil || len(s.params) == 0 {
		return &InvalidSpaceError{Reason: "space declares no parameters"}
	}
	usage := map[string][]paramUsage{}
	if err := s.validate("", nil, usage); err != nil {
		return err
	}
	return checkUsage(usage)
}

// paramUsage records where a parameter name occurs: its kind and the chain
// of (choice path, branch index) guards above it.
type paramUsage struct {
	kind   string // "range" or "choice"
	path   string
	guards []guardRef
}

type guardRef struct {
	choicePath string
	branch     int
}

func (s *Space) validate(prefix string, guards []guardRef, usage map[string][]paramUsage) error {
	seen := map[string]bool{}
	for _, np := range s.params {
		path := joinPath(prefix, np.name)
		if np.name == "" {
			return &InvalidSpaceError{Path: prefix, Reason: "empty parameter name"}
		}
		if seen[np.name] {
			return &InvalidSpaceError{Path: path, Reason: "duplicate parameter name"}
		}
		seen[np.name] = true

		switch {
		case np.param.Range != nil && np.param.Choice != nil:
			return &InvalidSpaceError{Path: path, Reason: "parameter is both range and choice"}
		case np.param.Range != nil:
			r := np.param.Range
			if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
				return &InvalidSpaceError{Path: path, Reason: "range bounds must be finite"}
			}
			if r.Min >= r.Max {
				return &InvalidSpaceError{Path: path, Reason: fmt.Sprintf("range min %v must be less than max %v", r.Min, r.Max)}
			}
			usage[np.name] = append(usage[np.name], paramUsage{kind: "range", path: path, guards: guards})
		case np.param.Choice != nil:
			c := np.param.Choice
			if len(c.Branches) == 0 {
				return &InvalidSpaceError{Path: path, Reason: "choice has no branches"}
			}
			labels := map[string]bool{}
			for i, b := range c.Branches {
				if b.Label == "" {
					return &InvalidSpaceError{Path: path, Reason: "empty branch label"}
				}
				if labels[b.Label] {
					return &InvalidSpaceError{Path: path, Reason: fmt.Sprintf("duplicate branch label %q", b.Label)}
				}
				labels[b.Label] = true
				if b.Sub != nil {
					sub := joinPath(prefix, np.name+"="+b.Label)
					childGuards := append(append([]guardRef{}, guards...), guardRef{choicePath: path, branch: i})
					if err := b.Sub.validate(sub, childGuards, usage); err != nil {
						return err
					}
				}
			}
			usage[np.name] = append(usage[np.name], paramUsage{kind: "choice", path: path, guards: guards})
		default:
			return &InvalidSpaceError{Path: path, Reason: "parameter is neither range nor choice"}
		}
	}
	return nil
}

// checkUsage rejects a name that is declared with different kinds, or whose
// occurrences are not mutually exclusive. Mutually exclusive occurrences sit
// under different branches of a common ancestor choice, so only one of them
// can ever be active in a configuration.
func checkUsage(usage map[string][]paramUsage) error {
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		uses := usage[name]
		for i := 1; i < len(uses); i++ {
			if uses[i].kind != uses[0].kind {
				return &InvalidSpaceError{
					Path:   uses[i].path,
					Reason: fmt.Sprintf("parameter declared as %s here and as %s at %q", uses[i].kind, uses[0].kind, uses[0].path),
				}
			}
			if !mutuallyExclusive(uses[0].guards, uses[i].guards) {
				return &InvalidSpaceError{
					Path:   uses[i].path,
					Reason: fmt.Sprintf("parameter also declared at %q; both can be active at once", uses[0].path),
				}
			}
		}
	}
	return nil
}

// mutuallyExclusive reports whether two guard chains diverge at a common
// choice, i.e. select different branches of the same ancestor.
func mutuallyExclusive(a, b []guardRef) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].choicePath != b[i].choicePath {
			return false
		}
		if a[i].branch != b[i].branch {
			return true
		}
	}
	return false
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Parse reads the plain JSON authoring notation: a space is an object whose
// values are either a two-element [min, max] array (a range) or a nested
// object (a choice) mapping branch labels to sub-spaces or null. Object keys
// are ordered lexically so parsing is deterministic. The result is not yet
// validated; call Validate before use.
//
//	{"algorithm": {"k-nn": {"n_neighbors": [1, 5]}, "naive-bayes": null}}
func Parse(data []byte) (*Space, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidSpaceError{Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	return parseGroup("", raw)
}

func parseGroup(prefix string, raw map[string]json.RawMessage) (*Space, error) {
	s := NewSpace()
	for _, name := range sortedKeys(raw) {
		path := joinPath(prefix, name)
		value := raw[name]
		switch firstByte(value) {
		case '[':
			var bounds []float64
			if err := json.Unmarshal(value, &bounds); err != nil {
				return nil, &InvalidSpaceError{Path: path, Reason: fmt.Sprintf("malformed range: %v", err)}
			}
			if len(bounds) != 2 {
				return nil, &InvalidSpaceError{Path: path, Reason: fmt.Sprintf("range needs exactly [min, max], got %d elements", len(bounds))}
			}
			s.AddRange(name, bounds[0], bounds[1])
		case '{':
			var branches map[string]json.RawMessage
			if err := json.Unmarshal(value, &branches); err != nil {
				return nil, &InvalidSpaceError{Path: path, Reason: fmt.Sprintf("malformed choice: %v", err)}
			}
			c := s.AddChoice(name)
			for _, label := range sortedKeys(branches) {
				bv := branches[label]
				switch firstByte(bv) {
				case 'n': // null branch, no parameters
					c.Branch(label, nil)
				case '{':
					var sub map[string]json.RawMessage
					if err := json.Unmarshal(bv, &sub); err != nil {
						return nil, &InvalidSpaceError{Path: path + "=" + label, Reason: fmt.Sprintf("malformed branch: %v", err)}
					}
					subSpace, err := parseGroup(joinPath(prefix, name+"="+label), sub)
					if err != nil {
						return nil, err
					}
					c.Branch(label, subSpace)
				default:
					return nil, &InvalidSpaceError{Path: path + "=" + label, Reason: "branch must be an object or null"}
				}
			}
		default:
			return nil, &InvalidSpaceError{Path: path, Reason: "parameter must be a [min, max] array or a choice object"}
		}
	}
	return s, nil
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
