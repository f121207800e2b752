// Package ports declares the interfaces between the application core and
// its adapters: the language-model backend, the event bus, the result
// store, the metrics collector and the token estimator. Adapters under
// pkg/adapters implement them; the application packages depend only on the
// interfaces.
package ports
