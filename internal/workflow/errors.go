package workflow

import "errors"

// Sentinel errors for workflow execution and the external surface.
var (
	// ErrTaskFailed wraps a task failure after its retry budget is exhausted.
	ErrTaskFailed = errors.New("task execution failed")
	// ErrTimeout indicates the whole-run deadline elapsed; in-flight tasks
	// were cancelled cooperatively.
	ErrTimeout = errors.New("workflow timeout")
	// ErrCancelled indicates the run context was cancelled by the caller.
	ErrCancelled = errors.New("workflow cancelled")
	// ErrUnknownTaskType indicates a task spec named a type no handler serves.
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrEmptyDocument indicates the input document carried no extractable
	// text; retrying cannot change the input.
	ErrEmptyDocument = errors.New("empty document")
	// ErrUnknownWorkflow indicates a workflow id with no tracked run.
	ErrUnknownWorkflow = errors.New("unknown workflow")
	// ErrNotFinished indicates a result was requested before the run reached
	// a terminal state.
	ErrNotFinished = errors.New("workflow not finished")
)
