package server

import (
	"github.com/strataopt/strata/internal/optimization"
	"github.com/strataopt/strata/internal/search"
)

// Builtins returns the demo objectives registered at startup. Real
// deployments register their own scoring functions, typically the
// cross-validated trainers from the crossval package.
func Builtins() map[string]optimization.Objective {
	return map[string]optimization.Objective{
		// negative-sphere peaks at 0 when every active numeric
		// parameter is 0. Categorical choices only matter through the
		// parameters they activate.
		"negative-sphere": func(cfg search.Configuration) (float64, error) {
			sum := 0.0
			for _, v := range cfg {
				if f, ok := v.Float(); ok {
					sum += f * f
				}
			}
			return -sum, nil
		},

		// sum rewards large numeric parameters, useful for exercising
		// bound clamping.
		"sum": func(cfg search.Configuration) (float64, error) {
			sum := 0.0
			for _, v := range cfg {
				if f, ok := v.Float(); ok {
					sum += f
				}
			}
			return sum, nil
		},
	}
}
