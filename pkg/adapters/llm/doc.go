// Package llm provides language-model backend implementations.
//
// The factory creates one backend per worker-pool account based on
// provider configuration. Currently supports:
//   - Anthropic Claude
package llm
