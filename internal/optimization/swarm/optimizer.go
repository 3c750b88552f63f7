// Package swarm implements particle swarm optimization over the continuous
// relaxation of a structured search space. Choice branches and range
// parameters are flattened into a [0,1]^d vector; every evaluated point is
// decoded back to a configuration with exactly one active branch per choice.
package swarm

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/strataopt/strata/internal/optimization"
	"github.com/strataopt/strata/internal/search"
)

// Constriction coefficients from Clerc and Kennedy, the common default for
// bounded swarms.
const (
	defaultInertia   = 0.7298
	defaultCognitive = 1.49618
	defaultSocial    = 1.49618
)

type runState int

const (
	stateInitialized runState = iota
	stateRunning
	stateCompleted
)

// Optimizer runs a budgeted particle swarm over a flattened search space.
type Optimizer struct {
	cfg  optimization.Config
	flat *search.Flattened
	rng  *rand.Rand

	swarmSize int
	inertia   float64
	cognitive float64
	social    float64

	mu     sync.Mutex
	state  runState
	trace  []optimization.Evaluation
	best   *optimization.Evaluation
	gBest  []float64 // position of the best successful evaluation
	cancel context.CancelFunc
}

// Option adjusts swarm tuning parameters.
type Option func(*Optimizer)

// WithSwarmSize overrides the default particle count.
func WithSwarmSize(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.swarmSize = n
		}
	}
}

// WithCoefficients overrides inertia and the cognitive/social pull.
func WithCoefficients(inertia, cognitive, social float64) Option {
	return func(o *Optimizer) {
		o.inertia = inertia
		o.cognitive = cognitive
		o.social = social
	}
}

// New validates the configuration and search space and seeds the swarm.
// Space validation happens here, before any budget is consumed.
func New(cfg optimization.Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	flat, err := search.Flatten(cfg.Space)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	o := &Optimizer{
		cfg:       cfg,
		flat:      flat,
		rng:       rand.New(rand.NewSource(seed)),
		inertia:   defaultInertia,
		cognitive: defaultCognitive,
		social:    defaultSocial,
	}
	o.swarmSize = 10 + 2*int(math.Sqrt(float64(flat.Dim())))
	for _, opt := range opts {
		opt(o)
	}
	if o.swarmSize > cfg.Budget {
		o.swarmSize = cfg.Budget
	}
	o.trace = make([]optimization.Evaluation, 0, cfg.Budget)
	return o, nil
}

type particle struct {
	pos     []float64
	vel     []float64
	bestPos []float64
	bestVal float64
	scored  bool
}

// Optimize consumes exactly the configured budget of objective evaluations
// and returns the report. It may be called once; later calls return
// ErrCompleted. A failing objective call still consumes one unit of budget
// and is recorded with the worst possible score, so one broken branch does
// not abort the run. If every evaluation fails, ErrNoValidResult is
// returned.
func (o *Optimizer) Optimize(ctx context.Context) (*optimization.Report, error) {
	o.mu.Lock()
	if o.state != stateInitialized {
		o.mu.Unlock()
		return nil, optimization.ErrCompleted
	}
	o.state = stateRunning
	ctx, o.cancel = context.WithCancel(ctx)
	o.mu.Unlock()
	defer o.cancel()

	defer func() {
		o.mu.Lock()
		o.state = stateCompleted
		o.mu.Unlock()
	}()

	particles := o.initSwarm()
	consumed := 0

	for consumed < o.cfg.Budget {
		remaining := o.cfg.Budget - consumed
		n := len(particles)
		if n > remaining {
			n = remaining
		}

		var err error
		if o.cfg.Workers > 1 {
			err = o.evaluateGeneration(ctx, particles[:n])
		} else {
			err = o.evaluateSequential(ctx, particles[:n])
		}
		if err != nil {
			return nil, err
		}
		consumed += n

		o.advance(particles)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	report, err := optimization.NewReport(o.trace, o.best)
	if err != nil {
		return nil, optimization.Wrap("Optimize", "no configuration could be scored", err)
	}
	return report, nil
}

// Best returns the best evaluation observed so far.
func (o *Optimizer) Best() *optimization.Evaluation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.best
}

// Trace returns a copy of the evaluations recorded so far.
func (o *Optimizer) Trace() []optimization.Evaluation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]optimization.Evaluation(nil), o.trace...)
}

// Stop cancels a running optimization.
func (o *Optimizer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// initSwarm places particles by Latin Hypercube Sampling so the initial
// generation is stratified across every dimension.
func (o *Optimizer) initSwarm() []*particle {
	d := o.flat.Dim()
	n := o.swarmSize
	particles := make([]*particle, n)
	for i := range particles {
		particles[i] = &particle{
			pos: make([]float64, d),
			vel: make([]float64, d),
		}
	}

	for j := 0; j < d; j++ {
		column := make([]float64, n)
		for i := 0; i < n; i++ {
			column[i] = (float64(i) + o.rng.Float64()) / float64(n)
		}
		o.rng.Shuffle(n, func(a, b int) {
			column[a], column[b] = column[b], column[a]
		})
		for i := 0; i < n; i++ {
			particles[i].pos[j] = column[i]
			particles[i].vel[j] = (o.rng.Float64() - 0.5) * 0.2
		}
	}
	return particles
}

// evaluateSequential scores particles one by one in swarm order. Ties on
// equal score resolve to the first evaluated configuration.
func (o *Optimizer) evaluateSequential(ctx context.Context, particles []*particle) error {
	for _, p := range particles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		ev := o.evaluate(p.pos)
		o.record(ev, p)
	}
	return nil
}

// evaluateGeneration scores one generation concurrently. Exactly one job is
// dispatched per particle, so budget accounting stays exact under
// concurrency. Results are folded into the shared best tracker by this
// goroutine alone (single-writer discipline); the evaluation index is
// assigned in completion order, which makes tie-breaking first-to-complete
// rather than swarm order.
func (o *Optimizer) evaluateGeneration(ctx context.Context, particles []*particle) error {
	type job struct {
		p   *particle
		pos []float64
	}
	type outcome struct {
		p  *particle
		ev optimization.Evaluation
	}

	jobs := make(chan job)
	results := make(chan outcome)

	workers := o.cfg.Workers
	if workers > len(particles) {
		workers = len(particles)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- outcome{p: j.p, ev: o.evaluate(j.pos)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range particles {
			pos := append([]float64(nil), p.pos...)
			select {
			case jobs <- job{p: p, pos: pos}:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(results)
		close(done)
	}()

	collected := 0
	for out := range results {
		o.record(out.ev, out.p)
		collected++
	}
	<-done

	if err := ctx.Err(); err != nil {
		return err
	}
	if collected != len(particles) {
		return optimization.Ef("evaluateGeneration", "dispatched %d evaluations, collected %d", len(particles), collected)
	}
	return nil
}

// evaluate decodes one position and invokes the objective. Objective
// failures become worst-score evaluations wrapped in ObjectiveError.
func (o *Optimizer) evaluate(pos []float64) optimization.Evaluation {
	cfg, err := o.flat.Decode(pos)
	if err != nil {
		return optimization.Evaluation{Score: math.Inf(-1), Err: err}
	}
	score, err := o.cfg.Objective(cfg)
	if err != nil {
		return optimization.Evaluation{
			Config: cfg,
			Score:  math.Inf(-1),
			Err:    &optimization.ObjectiveError{Config: cfg, Err: err},
		}
	}
	return optimization.Evaluation{Config: cfg, Score: score}
}

// record appends an evaluation to the trace and updates the particle's and
// the swarm's best. Only strictly better scores displace the incumbent, so
// the earliest-recorded evaluation wins ties.
func (o *Optimizer) record(ev optimization.Evaluation, p *particle) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ev.Index = len(o.trace)
	o.trace = append(o.trace, ev)

	if ev.Err != nil {
		return
	}
	if !p.scored || ev.Score > p.bestVal {
		p.bestVal = ev.Score
		p.bestPos = append(p.bestPos[:0], p.pos...)
		p.scored = true
	}
	if o.best == nil || ev.Score > o.best.Score {
		evCopy := ev
		o.best = &evCopy
		o.gBest = append(o.gBest[:0], p.pos...)
	}
}

// advance applies the velocity and position update. Particles without a
// personal best yet (every try failed) keep only their inertia term; the
// social term is dropped while the swarm has no successful evaluation.
func (o *Optimizer) advance(particles []*particle) {
	o.mu.Lock()
	gBest := append([]float64(nil), o.gBest...)
	o.mu.Unlock()

	for _, p := range particles {
		for j := range p.pos {
			v := o.inertia * p.vel[j]
			if p.scored {
				v += o.cognitive * o.rng.Float64() * (p.bestPos[j] - p.pos[j])
			}
			if len(gBest) > 0 {
				v += o.social * o.rng.Float64() * (gBest[j] - p.pos[j])
			}
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			p.vel[j] = v

			x := p.pos[j] + v
			if x < 0 {
				x = 0
			} else if x > 1 {
				x = 1
			}
			p.pos[j] = x
		}
	}
}
