// Package orchestrator implements the execution engine of the fan-out
// service: task decomposition, the three execution strategies (parallel,
// sequential, adaptive-batched), the bounded-concurrency batch runner,
// result aggregation and the run manager that tracks in-flight runs.
package orchestrator
