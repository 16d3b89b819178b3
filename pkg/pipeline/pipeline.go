// Package pipeline runs the board → job → route → fragment sequence shared
// by the command line tool and the HTTP service, with result caching.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/cache"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/dru"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/adaptive"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/config"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// Stack selections besides the preset names
const (
	StackBoard    = "board"    // the copper layers declared by the board
	StackAdaptive = "adaptive" // the cheapest preset that converges
)

// DefaultTTL is how long routed results stay cached
const DefaultTTL = 7 * 24 * time.Hour

// Request describes one routing run
type Request struct {
	Board   []byte         // .kicad_pcb text
	Config  *config.Config // nil = config.Default()
	Stack   string         // Preset name, StackBoard or StackAdaptive; "" follows the config
	Rules   string         // Optional .kicad_dru text
	Refresh bool           // Route even when a cached result exists
}

// Output is the outcome of a run
type Output struct {
	Key      string
	Entry    *cache.Entry
	Cached   bool
	Board    *pcb.Board
	Job      *router.Job        // nil on a cache hit
	Router   *router.Autorouter // nil on a cache hit
	Attempts []adaptive.Attempt
	Rules    *dru.Report

	source []byte
}

// Result returns the routing result
func (o *Output) Result() *router.Result {
	return o.Entry.Result
}

// Items returns the routed records
func (o *Output) Items() ([]*kicadsexp.List, error) {
	if o.Router != nil {
		return o.Router.SexpItems(), nil
	}
	return pcb.ParseFragment(o.Entry.Fragment)
}

// Inserted returns the board text with the routed records appended
func (o *Output) Inserted() (string, error) {
	items, err := o.Items()
	if err != nil {
		return "", err
	}
	return pcb.InsertRoutes(string(o.source), items)
}

// Runner routes boards, consulting its cache first. It holds no per-run
// state and may be shared by concurrent requests.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
	TTL    time.Duration
}

// NewRunner creates a runner. A nil cache disables caching and a nil
// logger discards output.
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Cache: c, Logger: logger, TTL: DefaultTTL}
}

// selection resolves the stack selection of req against cfg
func selection(req Request, cfg *config.Config) string {
	if req.Stack != "" {
		return req.Stack
	}
	if cfg.Routing.Adaptive {
		return StackAdaptive
	}
	return cfg.Routing.Stack
}

// Key returns the cache key of req
func Key(req Request, cfg *config.Config) string {
	return cache.RouteKey(req.Board, cfg.Fingerprint()+"\n"+cache.Hash([]byte(req.Rules)), selection(req, cfg))
}

// Run routes req.Board. Unroutable nets are reported in the result, never
// as errors.
func (r *Runner) Run(ctx context.Context, req Request) (*Output, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	board, err := pcb.ParseString(string(req.Board))
	if err != nil {
		return nil, err
	}

	out := &Output{Key: Key(req, cfg), Board: board, source: req.Board}
	if !req.Refresh {
		e, hit, err := cache.Lookup(ctx, r.Cache, out.Key)
		if err != nil {
			r.Logger.Warn("cache lookup failed", "err", err)
		} else if hit {
			r.Logger.Info("cached result", "stack", e.Stack, "created", e.CreatedAt.Format(time.RFC3339))
			out.Entry, out.Cached = e, true
			return out, nil
		}
	}

	var res *router.Result
	if sel := selection(req, cfg); sel == StackAdaptive {
		res, err = r.routeAdaptive(ctx, req, cfg, out)
	} else {
		res, err = r.routeStack(ctx, req, cfg, sel, out)
	}
	if err != nil {
		return nil, err
	}

	out.Entry = &cache.Entry{
		Stack:    res.Stack,
		Fragment: out.Router.ToSexp(),
		Result:   res,
	}
	if err := cache.Store(ctx, r.Cache, out.Key, out.Entry, r.TTL); err != nil {
		r.Logger.Warn("cache store failed", "err", err)
	}
	return out, nil
}

func (r *Runner) stack(board *pcb.Board, name string) (*rules.LayerStack, error) {
	if name == StackBoard {
		return board.LayerStack()
	}
	return rules.Preset(name)
}

func (r *Runner) routeStack(ctx context.Context, req Request, cfg *config.Config, name string, out *Output) (*router.Result, error) {
	stack, err := r.stack(out.Board, name)
	if err != nil {
		return nil, err
	}
	job, err := out.Board.Job(stack)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.RouterOptions(stack, r.Logger)
	if err != nil {
		return nil, err
	}
	if out.Rules, err = applyRules(req.Rules, &opts); err != nil {
		return nil, err
	}

	r.Logger.Info("routing board", "stack", stack.Name(), "nets", job.RoutableNets())
	res, ar, err := router.Route(ctx, job, opts)
	if err != nil {
		return nil, err
	}
	out.Job, out.Router = job, ar
	return res, nil
}

func (r *Runner) routeAdaptive(ctx context.Context, req Request, cfg *config.Config, out *Output) (*router.Result, error) {
	// The job keeps the copper the board declares; stacks without those
	// layers are skipped by the adaptive run.
	stack, err := out.Board.LayerStack()
	if err != nil {
		return nil, err
	}
	job, err := out.Board.Job(stack)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.AdaptiveOptions(r.Logger)
	if err != nil {
		return nil, err
	}
	if out.Rules, err = applyRules(req.Rules, &opts.Router); err != nil {
		return nil, err
	}

	r.Logger.Info("routing board adaptively", "nets", job.RoutableNets())
	res, err := adaptive.Route(ctx, job, opts)
	if err != nil {
		return nil, err
	}
	out.Job, out.Router, out.Attempts = job, res.Router, res.Attempts
	return res.Best, nil
}

// applyRules raises the design rules and net classes of opts to the
// thresholds of a .kicad_dru document.
func applyRules(src string, opts *router.Options) (*dru.Report, error) {
	if src == "" {
		return nil, nil
	}
	if opts.NetClasses == nil {
		opts.NetClasses = rules.NewNetClassMap()
	}
	rep, err := dru.LoadString(src, &opts.Rules, opts.NetClasses)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "design rules")
	}
	return rep, nil
}
