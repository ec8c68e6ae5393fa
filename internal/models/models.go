package models

import "time"

// Task priority values.
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Task status values. A task only ever moves between these two states,
// via an explicit update or the toggle endpoint.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusCompleted:
		return true
	default:
		return false
	}
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category groups a user's tasks. Name is unique per owner,
// case-insensitively, enforced by a unique index on (user_id, LOWER(name)).
type Category struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is the core entity. User is the owner's username and is read-only
// on the wire; Category is the category id, or null for uncategorized.
// CompletedAt is non-nil exactly when Status is COMPLETED.
type Task struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     Date       `json:"due_date"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at"`
	Category    *int       `json:"category"`
	User        string     `json:"user"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
