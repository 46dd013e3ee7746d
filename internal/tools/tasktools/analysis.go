package tasktools

import (
	"math"
	"time"

	"github.com/tasksage/tasksage/internal/store"
)

// TaskInsights summarizes a user's task activity for the assistant.
type TaskInsights struct {
	TotalTasks        int            `json:"total_tasks"`
	StatusCounts      map[string]int `json:"status_counts"`
	CreatedThisWeek   int            `json:"created_this_week"`
	CompletedThisWeek int            `json:"completed_this_week"`
	CompletionRate    int            `json:"completion_rate"`
	MostCommonStatus  string         `json:"most_common_status"`
	ActiveThisWeek    bool           `json:"active_this_week"`
}

// OverdueTask is one entry in the overdue report.
type OverdueTask struct {
	Title       string `json:"title"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
	DaysOverdue int    `json:"days_overdue"`
}

type OverdueReport struct {
	Count int           `json:"count"`
	Tasks []OverdueTask `json:"tasks"`
}

// statusOrder fixes the tie-break for the most common status. Ties on
// count resolve to the earliest entry here; the ordering itself is not
// meaningful beyond being deterministic.
var statusOrder = []string{store.StatusPending, store.StatusInProgress, store.StatusCompleted}

func computeInsights(tasks []*store.Task, now time.Time) TaskInsights {
	weekAgo := now.Add(-7 * 24 * time.Hour)

	counts := map[string]int{
		store.StatusPending:    0,
		store.StatusInProgress: 0,
		store.StatusCompleted:  0,
	}
	createdThisWeek := 0
	completedThisWeek := 0

	for _, t := range tasks {
		counts[t.Status]++
		if t.CreatedAt.After(weekAgo) {
			createdThisWeek++
		}
		if t.Status == store.StatusCompleted && t.UpdatedAt.After(weekAgo) {
			completedThisWeek++
		}
	}

	rate := 0
	if len(tasks) > 0 {
		rate = int(math.Round(100 * float64(counts[store.StatusCompleted]) / float64(len(tasks))))
	}

	most := statusOrder[0]
	for _, s := range statusOrder[1:] {
		if counts[s] > counts[most] {
			most = s
		}
	}

	return TaskInsights{
		TotalTasks:        len(tasks),
		StatusCounts:      counts,
		CreatedThisWeek:   createdThisWeek,
		CompletedThisWeek: completedThisWeek,
		CompletionRate:    rate,
		MostCommonStatus:  most,
		ActiveThisWeek:    createdThisWeek > 0,
	}
}

// daysOverdue rounds partial days up, so a task 36 hours past due is
// 2 days overdue.
func daysOverdue(due, now time.Time) int {
	return int(math.Ceil(now.Sub(due).Hours() / 24))
}

func computeOverdue(tasks []*store.Task, now time.Time) OverdueReport {
	overdue := []OverdueTask{}
	for _, t := range tasks {
		if t.DueDate == nil || t.Status == store.StatusCompleted {
			continue
		}
		if !t.DueDate.Before(now) {
			continue
		}
		overdue = append(overdue, OverdueTask{
			Title:       t.Title,
			DueDate:     t.DueDate.UTC().Format(time.RFC3339),
			Status:      t.Status,
			DaysOverdue: daysOverdue(*t.DueDate, now),
		})
	}
	return OverdueReport{Count: len(overdue), Tasks: overdue}
}
