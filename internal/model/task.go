// internal/model/task.go
package model

import "time"

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Toggled flips between pending and completed.
func (s TaskStatus) Toggled() TaskStatus {
	if s == TaskCompleted {
		return TaskPending
	}
	return TaskCompleted
}

type TaskType string

const (
	TaskCall          TaskType = "call"
	TaskMeeting       TaskType = "meeting"
	TaskDocumentation TaskType = "documentation"
	TaskVerification  TaskType = "verification"
	TaskFollowUp      TaskType = "follow_up"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

type Task struct {
	ID                string       `db:"id" json:"id"`
	UserID            string       `db:"user_id" json:"user_id"`
	ClientID          *string      `db:"client_id" json:"client_id,omitempty"`
	Title             string       `db:"title" json:"title"`
	Description       *string      `db:"description" json:"description,omitempty"`
	Type              TaskType     `db:"type" json:"type"`
	Priority          TaskPriority `db:"priority" json:"priority"`
	DueDate           Date         `db:"due_date" json:"due_date"`
	Time              *string      `db:"time" json:"time,omitempty"`
	Status            TaskStatus   `db:"status" json:"status"`
	EstimatedDuration *int         `db:"estimated_duration" json:"estimated_duration,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
}

func (t Task) RecordID() string { return t.ID }
func (t Task) OwnerID() string  { return t.UserID }

type TaskInput struct {
	ClientID          *string       `json:"client_id,omitempty"`
	Title             *string       `json:"title,omitempty"`
	Description       *string       `json:"description,omitempty"`
	Type              *TaskType     `json:"type,omitempty"`
	Priority          *TaskPriority `json:"priority,omitempty"`
	DueDate           *Date         `json:"due_date,omitempty"`
	Time              *string       `json:"time,omitempty"`
	Status            *TaskStatus   `json:"status,omitempty"`
	EstimatedDuration *int          `json:"estimated_duration,omitempty"`
}

type TaskStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	Today     int `json:"today"`
}
