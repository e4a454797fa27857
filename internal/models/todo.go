package models

import "github.com/gogotex/todo-api/internal/document"

// Priority of a to-do item. Values order lexicographically when sorted by the store.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Todo is a stored to-do item owned by a user.
type Todo struct {
	document.Base `bson:",inline"`
	Description   string   `bson:"description" json:"description"`
	IsCompleted   bool     `bson:"isCompleted" json:"isCompleted"`
	Priority      Priority `bson:"priority" json:"priority"`
	UserID        string   `bson:"userId" json:"userId"`
}

// TodoPatch is a partial update; nil fields are left untouched.
type TodoPatch struct {
	ID          string    `bson:"id"`
	Description *string   `bson:"description"`
	IsCompleted *bool     `bson:"isCompleted"`
	Priority    *Priority `bson:"priority"`
}
