// Package tasks holds the per-session to-do list.
package tasks

import (
	"fmt"

	"github.com/hyperjump/concierge/pkg/utils"
)

// EmptyMessage is returned by View when the list has no tasks.
const EmptyMessage = "Your to-do list is empty."

// List is an ordered sequence of task strings. Duplicates are allowed.
// A List is not safe for concurrent use.
type List struct {
	items []string
}

// NewList returns a list holding a copy of items.
func NewList(items ...string) *List {
	return &List{items: append([]string(nil), items...)}
}

// Add appends task.
func (l *List) Add(task string) string {
	l.items = append(l.items, task)
	return fmt.Sprintf("Task '%s' added.", task)
}

// Remove deletes the first exact match of task. A miss leaves the list unchanged.
func (l *List) Remove(task string) string {
	for i, it := range l.items {
		if it == task {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return fmt.Sprintf("Task '%s' removed.", task)
		}
	}
	return fmt.Sprintf("Task '%s' not found.", task)
}

// View returns a 1-indexed listing, or EmptyMessage.
func (l *List) View() string {
	if len(l.items) == 0 {
		return EmptyMessage
	}
	return utils.NumberedList(l.items)
}

// Items returns a copy of the current tasks.
func (l *List) Items() []string {
	return append([]string{}, l.items...)
}

// Len reports the number of tasks.
func (l *List) Len() int { return len(l.items) }
