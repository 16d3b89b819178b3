package router

import (
	"context"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/primitives"
)

// Job is the complete input of a routing run
type Job struct {
	Board      primitives.BoardGeometry
	Components []primitives.Component
	Nets       []primitives.Net
	Obstacles  []primitives.Obstacle
	Keepouts   []primitives.Obstacle
}

// RoutableNets counts the nets with at least two pins
func (j *Job) RoutableNets() int {
	n := 0
	for _, net := range j.Nets {
		if len(net.Pins) >= 2 {
			n++
		}
	}
	return n
}

// Load registers every input of the job with the autorouter
func (a *Autorouter) Load(job *Job) error {
	for _, c := range job.Components {
		if err := a.AddComponent(c); err != nil {
			return err
		}
	}
	for _, n := range job.Nets {
		if err := a.AddNet(n); err != nil {
			return err
		}
	}
	for _, o := range job.Obstacles {
		if err := a.AddObstacle(o); err != nil {
			return err
		}
	}
	for _, k := range job.Keepouts {
		if err := a.AddKeepout(k.Bounds, k.Layers); err != nil {
			return err
		}
	}
	return nil
}

// Route builds an autorouter for the job and routes every net. The
// autorouter is returned so that callers can serialise its routes.
func Route(ctx context.Context, job *Job, opts Options) (*Result, *Autorouter, error) {
	ar, err := New(job.Board, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := ar.Load(job); err != nil {
		return nil, nil, err
	}
	res, err := ar.RouteAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	return res, ar, nil
}
