// Package router orchestrates a routing job: it owns the routing grid,
// orders the nets, routes each one with the A* pathfinder and resolves
// conflicts by negotiated congestion (rip-up and reroute).
//
// # Lifecycle
//
//	Idle -> NetOrdering -> RoutingPass -> Converged
//	                           ^   |
//	                           |   v
//	                     NegotiationPass (until overflow 0 or MaxIterations)
//	                                    -> Done
//
// New validates the rules and builds the grid. Components, nets, obstacles
// and keepouts are registered next; their copper is rasterised once when
// routing starts. RouteAll returns a Result that records unroutable nets
// and residual overflow instead of failing: partial success is the normal
// outcome on dense boards. Only configuration errors are returned as
// errors.
//
// # Usage
//
//	ar, err := router.New(board, router.Options{Stack: stack, Rules: r})
//	if err != nil {
//	    return err
//	}
//	for _, c := range components {
//	    ar.AddComponent(c)
//	}
//	for _, n := range nets {
//	    ar.AddNet(n)
//	}
//	res, err := ar.RouteAll(ctx)
//	fmt.Print(ar.ToSexp())
//
// Route is a convenience wrapper doing the above for a Job.
package router
