// Package config provides environment-based configuration for the fan-out
// orchestrator.
//
// Configuration covers:
//   - HTTP and gRPC server ports
//   - Redis connection settings (events + result storage)
//   - Worker accounts and the load-balancing policy
//   - Engine concurrency bounds and timeouts
//
// All values are read from environment variables with sensible defaults;
// see Config for the variable names.
package config
