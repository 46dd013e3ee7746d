// Package assistant drives the AI features: the chat orchestrator,
// which offers task analysis tools to the model and executes the
// invocations it requests, and the subtask suggester, a one-shot
// prompt used during task creation.
package assistant
