// Package workers owns the pool of credentialed backend accounts and the
// subtask executor that runs one unit of work against them.
//
// The pool selects an account per request under a load-balancing policy
// (round-robin, least-loaded or cost-optimized) and records cumulative
// token and cost usage per account. Balancing is soft: acquisition and
// usage recording are not atomic with the downstream call, so two
// concurrent acquisitions may pick the same account.
package workers
