// Package adaptive routes a job on progressively larger layer stacks.
//
// The cheapest board is tried first. When a stack does not converge the
// job is routed again from scratch on the next stack of the sequence. The
// first converged attempt wins; if none converges the attempt with the
// least overflow, then the fewest unrouted nets, is returned.
package adaptive

import (
	"context"
	"time"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// Options configures an adaptive run
type Options struct {
	Router router.Options // Stack and Vias are replaced for every attempt
	Stacks []string       // Preset names, nil = rules.AdaptiveSequence
	HDI    bool           // Use blind, buried and micro vias on 4+ layer stacks
}

// Attempt summarises the routing of the job on one stack
type Attempt struct {
	Stack     string
	Converged bool
	Routed    int
	Requested int
	Overflow  int
	Unrouted  int
	Duration  time.Duration
	Err       error // Set when the job does not fit the stack
}

// Result is the outcome of an adaptive run
type Result struct {
	Best     *router.Result
	Router   *router.Autorouter // Autorouter holding the routes of Best
	Attempts []Attempt
}

// Stack returns the name of the chosen stack
func (r *Result) Stack() string {
	if r.Best == nil {
		return ""
	}
	return r.Best.Stack
}

func better(a, b *router.Result) bool {
	if a.Converged != b.Converged {
		return a.Converged
	}
	if a.Overflow != b.Overflow {
		return a.Overflow < b.Overflow
	}
	return len(a.UnroutedNets) < len(b.UnroutedNets)
}

// Route routes job on each stack of the sequence until one converges.
// Design rule errors abort the run; a job that names layers missing from a
// stack only skips that stack.
func Route(ctx context.Context, job *router.Job, opts Options) (*Result, error) {
	stacks := opts.Stacks
	if len(stacks) == 0 {
		stacks = rules.AdaptiveSequence
	}
	log := opts.Router.Logger

	out := &Result{}
	for _, name := range stacks {
		if err := ctx.Err(); err != nil {
			break
		}
		stack, err := rules.Preset(name)
		if err != nil {
			return nil, err
		}
		ro := opts.Router
		ro.Stack = stack
		ro.Vias = nil
		if opts.HDI && stack.Count() >= 4 {
			v := rules.HDIViaRules(stack, ro.Rules)
			ro.Vias = &v
		}

		start := time.Now()
		res, ar, err := router.Route(ctx, job, ro)
		att := Attempt{Stack: name, Duration: time.Since(start)}
		if err != nil {
			if !errors.Is(err, errors.ErrCodeInvalidLayer) {
				return nil, err
			}
			att.Err = err
			out.Attempts = append(out.Attempts, att)
			if log != nil {
				log.Warn("stack skipped", "stack", name, "err", err)
			}
			continue
		}
		att.Converged = res.Converged
		att.Routed, att.Requested = res.NetsRouted, res.NetsRequested
		att.Overflow, att.Unrouted = res.Overflow, len(res.UnroutedNets)
		out.Attempts = append(out.Attempts, att)
		if log != nil {
			log.Info("adaptive attempt", "stack", name, "converged", res.Converged,
				"routed", res.NetsRouted, "overflow", res.Overflow)
		}

		if out.Best == nil || better(res, out.Best) {
			out.Best, out.Router = res, ar
		}
		if res.Converged {
			break
		}
	}
	if out.Best == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New(errors.ErrCodeInvalidLayer, "job fits none of the stacks %v", stacks)
	}
	return out, nil
}
