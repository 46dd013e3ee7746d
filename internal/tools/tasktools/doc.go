// Package tasktools exposes read-only task analysis tools over the
// Model Context Protocol: analyze_tasks for productivity insights and
// get_overdue_tasks for tasks past their due date. Tool faults are
// returned as error-shaped results, never as transport errors.
package tasktools
