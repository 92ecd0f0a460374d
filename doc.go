// Package qutip collects and aggregates the output of stochastic quantum
// trajectory simulations.
//
// A solver records one trajectory at a time into a result.Result: at each
// sample it evaluates the bound observables, optionally retains the
// state, and logs discrete collapse events. Finished trajectories are
// folded into a result.MultiTraj aggregator, which reconstructs ensemble
// means, standard deviations, averaged density operators and collapse
// rate histograms — either keeping every trajectory (Retained) or only
// running sums (Streaming).
//
// The Experiment type in this package wires the pieces together: it
// binds observables once, vends per-trajectory recorders, and can drive
// whole batches concurrently while keeping aggregation serialized.
package qutip
