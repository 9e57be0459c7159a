package convert

import "fmt"

// Category classifies a message the converter logs while running.
type Category int

const (
	CategoryWarning Category = iota
	CategoryError
)

func (c Category) String() string {
	if c == CategoryError {
		return "ERROR"
	}
	return "WARNING"
}

// Message is one accumulated log entry, grounded on
// original_source/.../parser/types.py's MessageTable/MessageCategory
// (spec.md Sec. 4.8: "A message log accumulates warnings and errors
// throughout").
type Message struct {
	Category Category
	Text     string
}

// Table accumulates Messages in emission order.
type Table struct {
	Messages []Message
}

// Add appends a message.
func (t *Table) Add(cat Category, text string) {
	t.Messages = append(t.Messages, Message{Category: cat, Text: text})
}

// Warn is shorthand for Add(CategoryWarning, ...).
func (t *Table) Warn(format string, args ...any) {
	t.Add(CategoryWarning, fmt.Sprintf(format, args...))
}

// Err is shorthand for Add(CategoryError, ...).
func (t *Table) Err(format string, args ...any) {
	t.Add(CategoryError, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any CategoryError message was logged.
func (t *Table) HasErrors() bool {
	for _, m := range t.Messages {
		if m.Category == CategoryError {
			return true
		}
	}
	return false
}
