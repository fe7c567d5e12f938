package domain

import "time"

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// RoutedFrom records the origin of a task that was relocated to another
// board by cross-team routing. Written exactly once, by the routing
// resolver.
type RoutedFrom struct {
	BoardKey  string    `json:"board_key"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	RoutedAt  time.Time `json:"routed_at"`
}

// Task is a single board item. DepartmentID is resolved once at creation and
// never null afterwards.
type Task struct {
	ID           string      `json:"id"`
	BoardKey     string      `json:"board_key"`
	ColumnID     string      `json:"column_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Priority     Priority    `json:"priority,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
	DueDate      string      `json:"due_date,omitempty"`
	AssigneeID   string      `json:"assignee_id,omitempty"`
	CreatorID    string      `json:"creator_id"`
	DepartmentID string      `json:"department_id"`
	RoutedFrom   *RoutedFrom `json:"routed_from,omitempty"`

	// Expense-board fields.
	Amount     float64 `json:"amount,omitempty"`
	Category   string  `json:"category,omitempty"`
	ReceiptURL string  `json:"receipt_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoutingEvent is the envelope published to the routing queue whenever a
// task is relocated across boards.
type RoutingEvent struct {
	TaskID    string    `json:"taskId"`
	FromBoard string    `json:"fromBoard"`
	ToBoard   string    `json:"toBoard"`
	ActorID   string    `json:"actorId"`
	RoutedAt  time.Time `json:"routedAt"`
}
