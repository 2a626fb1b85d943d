// Package valuation populates cubes by pricing trades on parallel workers,
// each owning its own cube, and joins the worker cubes into one view.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"exposure-cube-lab/internal/cube"
	"exposure-cube-lab/internal/domain"
	"exposure-cube-lab/internal/observability"
)

// Job is one trade to price into a worker cube.
type Job struct {
	Trade domain.TradeEnvelope
	Index int // trade index in Cube
	Cube  cube.Cube
	// SampleOffset is the global index of the cube's first sample.
	SampleOffset int
}

// Pricer writes the simulated values of one trade into its cube.
type Pricer interface {
	Price(ctx context.Context, job Job) error
}

// PricerFunc adapts a function to Pricer.
type PricerFunc func(ctx context.Context, job Job) error

// Price implements Pricer.
func (f PricerFunc) Price(ctx context.Context, job Job) error { return f(ctx, job) }

// FailurePolicy decides what happens when a trade fails to price.
type FailurePolicy string

// Failure policies
const (
	// FailRun aborts the whole run on the first failure.
	FailRun FailurePolicy = "fail_run"
	// ZeroFill zeroes the failed trade's cells and continues.
	ZeroFill FailurePolicy = "zero_fill"
)

// ParseFailurePolicy resolves a policy name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case FailRun, ZeroFill:
		return FailurePolicy(s), nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// ErrPricing wraps trade pricing failures.
var ErrPricing = errors.New("pricing failed")

// Options configures an Engine.
type Options struct {
	Threads int           // Default: runtime.NumCPU()
	Cube    cube.Config   // Default: cube.DefaultConfig()
	Policy  FailurePolicy // Default: FailRun
	Logger  *log.Logger
}

// Engine runs pricers over partitions of a portfolio.
type Engine struct {
	pricer  Pricer
	threads int
	cubeCfg cube.Config
	policy  FailurePolicy
	logger  *log.Logger
}

// NewEngine creates a valuation engine.
func NewEngine(pricer Pricer, opts Options) *Engine {
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	cubeCfg := opts.Cube
	if cubeCfg.Depth == 0 && cubeCfg.Calculator == nil {
		cubeCfg.Depth = 1
	}
	policy := opts.Policy
	if policy == "" {
		policy = FailRun
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		pricer:  pricer,
		threads: threads,
		cubeCfg: cubeCfg,
		policy:  policy,
		logger:  logger,
	}
}

// Result is the outcome of a run.
type Result struct {
	// Cube holds every trade in portfolio order, in the configured layout
	// and precision.
	Cube cube.Cube
	// Joint is the view over Parts that Cube was merged from.
	Joint cube.Cube
	Parts []cube.Cube
	// Failed lists trades zero-filled under ZeroFill.
	Failed []string
}

// Run prices portfolio with trades partitioned over workers. The merged
// cube indexes trades in portfolio order regardless of worker scheduling.
func (e *Engine) Run(ctx context.Context, asof time.Time, portfolio []domain.TradeEnvelope, dates []time.Time, samples int) (*Result, error) {
	groups := Partition(portfolio, e.threads)
	if len(groups) == 0 {
		c, err := cube.New(e.cubeCfg, asof, nil, dates, samples)
		if err != nil {
			return nil, err
		}
		return &Result{Cube: c, Joint: c, Parts: []cube.Cube{c}}, nil
	}
	e.logger.Printf("pricing %d trades on %d workers", len(portfolio), len(groups))

	parts := make([]cube.Cube, len(groups))
	failed := make([][]string, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for w, trades := range groups {
		g.Go(func() error {
			c, err := cube.New(e.cubeCfg, asof, trades, dates, samples)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			failed[w], err = e.work(gctx, w, c, trades, 0)
			if err != nil {
				return err
			}
			parts[w] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]string, len(portfolio))
	for i, t := range portfolio {
		order[i] = t.TradeID
	}
	joint, err := cube.NewJoint(parts, order)
	if err != nil {
		return nil, fmt.Errorf("join worker cubes: %w", err)
	}
	return e.merge(joint, parts, portfolio, flatten(failed))
}

// RunScenarios prices the whole portfolio on every worker, each worker
// owning a contiguous range of samples, and stitches the worker cubes along
// the sample axis.
func (e *Engine) RunScenarios(ctx context.Context, asof time.Time, portfolio []domain.TradeEnvelope, dates []time.Time, samples int) (*Result, error) {
	ranges := SplitSamples(samples, e.threads)
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: samples must be positive", cube.ErrInvalidShape)
	}
	e.logger.Printf("pricing %d trades x %d samples on %d scenario workers", len(portfolio), samples, len(ranges))

	parts := make([]cube.Cube, len(ranges))
	failed := make([][]string, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for w, r := range ranges {
		g.Go(func() error {
			c, err := cube.New(e.cubeCfg, asof, portfolio, dates, r.Len())
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			failed[w], err = e.work(gctx, w, c, portfolio, r.Start)
			if err != nil {
				return err
			}
			parts[w] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	joint, err := cube.NewSampleJoint(parts)
	if err != nil {
		return nil, fmt.Errorf("join scenario cubes: %w", err)
	}
	return e.merge(joint, parts, portfolio, dedupe(flatten(failed)))
}

// merge copies the joined worker cubes into one cube of the configured
// layout and precision.
func (e *Engine) merge(joint cube.Cube, parts []cube.Cube, portfolio []domain.TradeEnvelope, failed []string) (*Result, error) {
	merged, err := cube.Merge(e.cubeCfg, joint, portfolio)
	if err != nil {
		return nil, fmt.Errorf("merge worker cubes: %w", err)
	}
	return &Result{Cube: merged, Joint: joint, Parts: parts, Failed: failed}, nil
}

// work prices trades into c in order. Trade i of trades is cube index i.
func (e *Engine) work(ctx context.Context, worker int, c cube.Cube, trades []domain.TradeEnvelope, sampleOffset int) ([]string, error) {
	start := time.Now()
	observability.RecordWorkerStarted()
	defer func() { observability.RecordWorkerFinished(time.Since(start).Seconds()) }()

	var failed []string
	for i, t := range trades {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := e.price(ctx, Job{Trade: t, Index: i, Cube: c, SampleOffset: sampleOffset})
		if err == nil {
			observability.RecordTradePriced()
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		observability.RecordPricingFailure(string(e.policy))
		if e.policy == FailRun {
			return nil, fmt.Errorf("worker %d: trade %s: %w: %w", worker, t.TradeID, ErrPricing, err)
		}
		e.logger.Printf("worker %d: trade %s zero-filled after pricing error: %v", worker, t.TradeID, err)
		cube.ZeroTrade(c, i)
		failed = append(failed, t.TradeID)
	}
	e.logger.Printf("worker %d: %d trades in %s", worker, len(trades), time.Since(start).Round(time.Millisecond))
	return failed, nil
}

// price calls the pricer, converting a panic into an error.
func (e *Engine) price(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.pricer.Price(ctx, job)
}

func flatten(lists [][]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
