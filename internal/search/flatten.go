package search

import "fmt"

// dimension is one coordinate of the flattened meta vector. Choice
// dimensions select a branch, range dimensions carry one bounded parameter
// scoped to its branch path. A dimension is active only when every guard
// above it selects the matching branch; guard dimensions always precede
// their children in the slice.
type dimension struct {
	name   string // configuration key
	rng    *Range
	choice *Choice
	guards []guard
}

type guard struct {
	dim    int // index of the controlling choice dimension
	branch int // branch that must be selected for this dimension to be active
}

// Flattened is the continuous relaxation of a Space: every dimension lives
// in [0, 1] and Decode maps a point back to a Configuration.
type Flattened struct {
	dims  []dimension
	names []string // union of parameter names across all branches
}

// Flatten validates the space and produces its continuous relaxation. The
// walk is deterministic: parameters in declaration order (lexical for parsed
// spaces), branches in label order within each choice.
func Flatten(s *Space) (*Flattened, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	f := &Flattened{}
	f.walk(s, nil)
	seen := map[string]bool{}
	for _, d := range f.dims {
		if !seen[d.name] {
			seen[d.name] = true
			f.names = append(f.names, d.name)
		}
	}
	return f, nil
}

func (f *Flattened) walk(s *Space, guards []guard) {
	for _, np := range s.params {
		switch {
		case np.param.Range != nil:
			f.dims = append(f.dims, dimension{
				name:   np.name,
				rng:    np.param.Range,
				guards: guards,
			})
		case np.param.Choice != nil:
			dim := len(f.dims)
			f.dims = append(f.dims, dimension{
				name:   np.name,
				choice: np.param.Choice,
				guards: guards,
			})
			for i, b := range np.param.Choice.Branches {
				if b.Sub == nil {
					continue
				}
				childGuards := append(append([]guard{}, guards...), guard{dim: dim, branch: i})
				f.walk(b.Sub, childGuards)
			}
		}
	}
}

// Dim reports the number of flattened dimensions.
func (f *Flattened) Dim() int { return len(f.dims) }

// Names returns the union of parameter names, in dimension order.
func (f *Flattened) Names() []string {
	return append([]string(nil), f.names...)
}

// Decode maps a point of the normalized search domain to a Configuration.
// Values are clamped into [0, 1] first, so a search algorithm momentarily
// overshooting its domain still decodes to in-bound parameters. A choice
// coordinate v selects branch floor(v*n) capped at n-1: each branch owns the
// half-open interval [i/n, (i+1)/n), a coordinate exactly on an interior
// boundary belongs to the upper branch, and v == 1 resolves to the last
// branch. Inactive parameters are present and unset.
func (f *Flattened) Decode(vec []float64) (Configuration, error) {
	if len(vec) != len(f.dims) {
		return nil, fmt.Errorf("decode: got %d coordinates, space has %d dimensions", len(vec), len(f.dims))
	}

	cfg := make(Configuration, len(f.names))
	for _, name := range f.names {
		cfg[name] = Unset()
	}

	selected := make([]int, len(f.dims)) // branch per choice dimension
	active := make([]bool, len(f.dims))

	for i, d := range f.dims {
		active[i] = true
		for _, g := range d.guards {
			if !active[g.dim] || selected[g.dim] != g.branch {
				active[i] = false
				break
			}
		}
		if !active[i] {
			continue
		}

		v := clamp01(vec[i])
		if d.choice != nil {
			n := len(d.choice.Branches)
			idx := int(v * float64(n))
			if idx >= n {
				idx = n - 1
			}
			selected[i] = idx
			cfg[d.name] = Label(d.choice.Branches[idx].Label)
			continue
		}

		val := d.rng.Min + v*(d.rng.Max-d.rng.Min)
		if val < d.rng.Min {
			val = d.rng.Min
		}
		if val > d.rng.Max {
			val = d.rng.Max
		}
		cfg[d.name] = Number(val)
	}
	return cfg, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
