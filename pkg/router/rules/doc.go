// Package rules holds the immutable configuration of a routing job: the
// physical layer stack, the numeric design rules, the via catalogue and the
// net-class priority map.
//
// Everything in this package is pure data. Values are created once before
// the routing grid is built and never mutated afterwards; Validate methods
// reject bad input with configuration errors so that a job fails before any
// grid state exists.
//
// # Layer stacks
//
// Presets cover the common fabrication stackups:
//
//	2layer                         F.Cu, B.Cu
//	4layer                         four signal layers
//	4layer-sig-gnd-pwr-sig         two signal layers around GND/PWR planes
//	6layer                         six signal layers
//	6layer-sig-gnd-sig-sig-pwr-sig signal, GND plane, two inner signal, PWR plane, signal
//
// # Vias
//
// ViaRules.GetBestVia picks the cheapest via definition whose span covers
// both requested layers. Definitions below the manufacturer's minimum drill
// are never returned.
package rules
