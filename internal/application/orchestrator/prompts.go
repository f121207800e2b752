package orchestrator

// decompositionPrompt instructs the backend to break a task into a bounded
// list of subtasks and recommend an execution strategy. The reply must be a
// single JSON object; the decomposer extracts the first balanced {...} from
// the response text.
const decompositionPrompt = `You are a task planner. Break the user's task into at most %d subtasks.

Respond with ONE JSON object and nothing else, in exactly this shape:
{
  "subTasks": [
    {
      "id": "short-identifier",
      "description": "what this subtask must accomplish",
      "complexity": "simple" | "medium" | "complex",
      "dependencies": ["ids of subtasks this one needs, or empty"]
    }
  ],
  "recommendedStrategy": "parallel" | "sequential" | "adaptive"
}

Rules:
- "complexity" must be exactly one of: simple, medium, complex.
- "recommendedStrategy" must be exactly one of: parallel, sequential, adaptive.
- Recommend "parallel" when subtasks are independent, "sequential" when each
  builds on the previous, "adaptive" for a mix.
- Never emit more than %d subtasks.`

// aggregationPrompt frames the final synthesis call. The subtask outcomes
// are appended as an enumerated list.
const aggregationPrompt = `You are synthesizing the results of a task that was split into subtasks.

Original task: %s

Subtask outcomes follow. Combine them into one coherent final answer to the
original task. Account for failed subtasks explicitly instead of ignoring
them.

%s`
