package draw

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"secretsanta/internal/roster"
)

// Outcome is the result of one attempt.
type Outcome struct {
	Number   int // 1-based attempt number across all workers
	Worker   int
	Roster   *roster.Roster // the attempt's private copy
	Small    int            // participants assigned a small recipient
	Large    int            // participants assigned a large recipient
	Duration time.Duration
	Err      error // nil, *StallError or *VerificationError
}

// OK reports whether the attempt produced a verified assignment.
func (o Outcome) OK() bool { return o.Err == nil }

// Attempt runs one full attempt against a deep copy of r: small gifts for
// everyone, then large gifts, then Verify. r itself is never modified.
func Attempt(r *roster.Roster, rng *rand.Rand) Outcome {
	start := time.Now()
	cp := r.Clone()
	cp.Reset()

	out := Outcome{Roster: cp}
	for _, k := range roster.Kinds() {
		n, err := assignGiftKind(cp, k, rng)
		switch k {
		case roster.Small:
			out.Small = n
		case roster.Large:
			out.Large = n
		}
		if err != nil {
			out.Err = err
			out.Duration = time.Since(start)
			return out
		}
	}
	out.Err = Verify(cp)
	out.Duration = time.Since(start)
	return out
}

// Result is a verified assignment.
type Result struct {
	ID       uuid.UUID
	Attempts int
	Seed     uint64
	Roster   *roster.Roster
}

// GiverRow is one line of the giving table.
type GiverRow struct {
	Name  string `yaml:"name"`
	Small string `yaml:"small"`
	Large string `yaml:"large"`
}

// ReceiverRow is one line of the receiving table.
type ReceiverRow struct {
	Name      string `yaml:"name"`
	SmallFrom string `yaml:"small_from"`
	LargeFrom string `yaml:"large_from"`
}

// Giving lists every participant's recipients in roster order.
func (res *Result) Giving() []GiverRow {
	people := res.Roster.People()
	rows := make([]GiverRow, len(people))
	for i, p := range people {
		rows[i] = GiverRow{
			Name:  p.Name(),
			Small: nameOf(p.GivingTo(roster.Small)),
			Large: nameOf(p.GivingTo(roster.Large)),
		}
	}
	return rows
}

// Receiving lists every participant's givers in roster order.
func (res *Result) Receiving() []ReceiverRow {
	people := res.Roster.People()
	rows := make([]ReceiverRow, len(people))
	for i, p := range people {
		rows[i] = ReceiverRow{
			Name:      p.Name(),
			SmallFrom: nameOf(p.ReceivingFrom(roster.Small)),
			LargeFrom: nameOf(p.ReceivingFrom(roster.Large)),
		}
	}
	return rows
}

func nameOf(p *roster.Person) string {
	if p == nil {
		return ""
	}
	return p.Name()
}

// Solver repeats attempts until one succeeds.
type Solver struct {
	// MaxAttempts caps the number of attempts. Zero means no cap.
	MaxAttempts int

	// Workers is the number of attempts run in parallel. Values below 2
	// run attempts one after another on the calling goroutine.
	Workers int

	// Seed makes draws reproducible. Zero seeds from the clock. With
	// several workers each one derives its own stream from Seed.
	Seed uint64

	Logger *zap.Logger

	// OnAttempt, if set, is called after every attempt. Calls are never
	// concurrent.
	OnAttempt func(Outcome)
}

// errSolved stops the remaining workers once one of them has a result.
var errSolved = errors.New("draw: solved")

// Solve returns the first verified assignment of r. r is read but never
// modified; every attempt starts from a fresh copy of it.
//
// Solve returns ErrAttemptsExhausted once MaxAttempts is reached, ctx.Err()
// if ctx ends first, and a *VerificationError immediately if a finished
// attempt fails verification.
func (s *Solver) Solve(ctx context.Context, r *roster.Roster) (*Result, error) {
	seed := s.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("draw started",
		zap.Int("participants", r.Len()),
		zap.Int("workers", max(s.Workers, 1)),
		zap.Int("max_attempts", s.MaxAttempts),
		zap.Uint64("seed", seed))

	run := &solveRun{solver: s, log: log, roster: r, seed: seed}
	if s.Workers < 2 {
		return run.sequential(ctx)
	}
	return run.parallel(ctx)
}

// solveRun is the state of one call to Solve.
type solveRun struct {
	solver *Solver
	log    *zap.Logger
	roster *roster.Roster
	seed   uint64

	next atomic.Int64 // last attempt number handed out

	mu     sync.Mutex // serializes OnAttempt and guards result
	result *Result
}

// claim hands out the next attempt number, or false once the cap is hit.
func (sr *solveRun) claim() (int, bool) {
	n := int(sr.next.Add(1))
	if sr.solver.MaxAttempts > 0 && n > sr.solver.MaxAttempts {
		return 0, false
	}
	return n, true
}

func (sr *solveRun) sequential(ctx context.Context) (*Result, error) {
	rng := rand.New(rand.NewPCG(sr.seed, 0))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := sr.claim()
		if !ok {
			return nil, sr.exhausted()
		}
		done, err := sr.step(n, 0, rng)
		if err != nil {
			return nil, err
		}
		if done {
			return sr.result, nil
		}
	}
}

func (sr *solveRun) parallel(ctx context.Context) (*Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	for w := range sr.solver.Workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(sr.seed, uint64(w)))
			for gctx.Err() == nil {
				n, ok := sr.claim()
				if !ok {
					return nil
				}
				done, err := sr.step(n, w, rng)
				if err != nil {
					return err
				}
				if done {
					return errSolved
				}
			}
			return nil
		})
	}
	err := g.Wait()
	sr.mu.Lock()
	defer sr.mu.Unlock()
	switch {
	case sr.result != nil:
		return sr.result, nil
	case err != nil && !errors.Is(err, errSolved):
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}
	return nil, sr.exhausted()
}

// step runs attempt n and records its outcome. It reports done once a
// result exists, and returns an error only for verification failures.
func (sr *solveRun) step(n, worker int, rng *rand.Rand) (bool, error) {
	out := Attempt(sr.roster, rng)
	out.Number = n
	out.Worker = worker

	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sr.result != nil {
		// Another worker finished first; drop this attempt unreported.
		return true, nil
	}
	if hook := sr.solver.OnAttempt; hook != nil {
		hook(out)
	}

	var stall *StallError
	switch {
	case out.OK():
		sr.result = &Result{ID: uuid.New(), Attempts: n, Seed: sr.seed, Roster: out.Roster}
		sr.log.Info("gifts assigned",
			zap.Int("attempt", n),
			zap.Int("worker", worker),
			zap.Stringer("draw_id", sr.result.ID))
		return true, nil
	case errors.As(out.Err, &stall):
		sr.log.Debug("attempt stalled",
			zap.Int("attempt", n),
			zap.Int("worker", worker),
			zap.Stringer("kind", stall.Kind),
			zap.String("giver", stall.Giver),
			zap.Int("small", stall.Small),
			zap.Int("large", stall.Large),
			zap.Int("size", stall.Size))
		return false, nil
	default:
		sr.log.Error("assignment failed verification",
			zap.Int("attempt", n),
			zap.Error(out.Err))
		return false, fmt.Errorf("attempt %d: %w", n, out.Err)
	}
}

func (sr *solveRun) exhausted() error {
	sr.log.Warn("no valid assignment found", zap.Int("max_attempts", sr.solver.MaxAttempts))
	return fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, sr.solver.MaxAttempts)
}
