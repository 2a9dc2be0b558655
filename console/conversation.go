package console

import (
	"sync"
	"time"

	"github.com/DachengChen/nlsql/api"
	"github.com/google/uuid"
)

// EntryKind tags a conversation entry.
type EntryKind string

const (
	EntryUser       EntryKind = "user"
	EntrySQLResult  EntryKind = "sql-result"
	EntryChatAnswer EntryKind = "chat-answer"
)

// EntryStatus tracks a pipeline stage. User entries are always succeeded.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusSucceeded EntryStatus = "succeeded"
	StatusFailed    EntryStatus = "failed"
)

// Entry is one line of the conversation log.
type Entry struct {
	ID     string
	Kind   EntryKind
	Status EntryStatus
	Time   time.Time

	Text   string         // question, answer or error message
	SQL    string         // sql-result only
	Result *api.ResultSet // sql-result only
}

// Conversation is an append-only log whose pending entries are resolved
// in place.
type Conversation struct {
	mu      sync.Mutex
	entries []Entry
}

// Entries returns a copy of the log.
func (c *Conversation) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear empties the log.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

func (c *Conversation) appendUser(question string) string {
	return c.append(Entry{Kind: EntryUser, Status: StatusSucceeded, Text: question})
}

func (c *Conversation) appendPending(kind EntryKind) string {
	return c.append(Entry{Kind: kind, Status: StatusPending})
}

func (c *Conversation) append(e Entry) string {
	e.ID = uuid.NewString()
	e.Time = time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return e.ID
}

// resolve updates entry id and reports whether it still exists; it is
// gone when the log was cleared while the stage was running.
func (c *Conversation) resolve(id string, fn func(*Entry)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].ID == id {
			fn(&c.entries[i])
			return true
		}
	}
	return false
}

func (c *Conversation) succeed(id string, fn func(*Entry)) bool {
	return c.resolve(id, func(e *Entry) {
		e.Status = StatusSucceeded
		if fn != nil {
			fn(e)
		}
	})
}

func (c *Conversation) fail(id, message string) bool {
	return c.resolve(id, func(e *Entry) {
		e.Status = StatusFailed
		e.Text = message
	})
}
