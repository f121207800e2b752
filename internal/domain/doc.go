// Package domain defines the core data model of the fan-out orchestrator:
// tasks, subtasks, execution results, the execution and load-balancing
// strategy enums, the model catalog, and the sentinel errors shared across
// application and adapter packages.
package domain
