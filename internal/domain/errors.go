package domain

import "errors"

var (
	// ErrNoWorkersAvailable is returned when the worker pool has no
	// accounts. An empty pool is a configuration error, fatal at
	// construction.
	ErrNoWorkersAvailable = errors.New("no workers available")

	// ErrDecompositionParse is returned when the decomposition reply
	// contains no valid structure or misses required fields. It is fatal to
	// the whole run; there is no fallback decomposition.
	ErrDecompositionParse = errors.New("decomposition parse error")

	// ErrAggregation is returned when the final synthesis call fails. No
	// partial aggregation is attempted.
	ErrAggregation = errors.New("aggregation error")

	// ErrUnknownComplexity rejects complexity values outside the closed set.
	ErrUnknownComplexity = errors.New("unknown complexity")

	// ErrUnknownStrategy rejects execution strategy values outside the
	// closed set.
	ErrUnknownStrategy = errors.New("unknown execution strategy")

	// ErrResultNotFound is returned by result stores for unknown run IDs.
	ErrResultNotFound = errors.New("result not found")

	// ErrRunNotFound is returned by the run manager for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
)
