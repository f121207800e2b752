package orchestrator

import (
	"fmt"

	"github.com/disasterproject/fanout/internal/domain"
)

// Validator validates orchestration tasks and decompositions.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTask validates a task before it is accepted for orchestration.
func (v *Validator) ValidateTask(task *domain.Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}

	if task.Description == "" {
		return fmt.Errorf("task description is required")
	}

	if task.MaxSubTasks < 0 {
		return fmt.Errorf("max subtasks must not be negative")
	}

	return nil
}

// ValidateDecomposition validates the parsed decomposition: every subtask
// needs a description and a known complexity, IDs must be unique, and
// dependencies may only reference subtasks within the decomposition.
func (v *Validator) ValidateDecomposition(d *domain.Decomposition) error {
	if d == nil {
		return fmt.Errorf("decomposition is nil")
	}

	if len(d.SubTasks) == 0 {
		return fmt.Errorf("decomposition must have at least one subtask")
	}

	ids := make(map[string]bool, len(d.SubTasks))
	for _, st := range d.SubTasks {
		if st.ID == "" {
			return fmt.Errorf("subtask ID is required")
		}
		if ids[st.ID] {
			return fmt.Errorf("duplicate subtask ID: %s", st.ID)
		}
		ids[st.ID] = true

		if st.Description == "" {
			return fmt.Errorf("subtask %s: description is required", st.ID)
		}
		if _, err := domain.ParseComplexity(string(st.Complexity)); err != nil {
			return fmt.Errorf("subtask %s: %w", st.ID, err)
		}
	}

	for _, st := range d.SubTasks {
		for _, dep := range st.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("subtask %s references unknown dependency %q", st.ID, dep)
			}
		}
	}

	if _, err := domain.ParseStrategy(string(d.RecommendedStrategy)); err != nil {
		return err
	}

	return nil
}
