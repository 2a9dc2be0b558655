package console

import (
	"fmt"
	"sync"
	"time"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/metrics"
)

const (
	// HistoryCapacity is the number of SQL runs kept.
	HistoryCapacity = 20
	// HistoryKey is the store key holding the serialized history.
	HistoryKey = "sql_history"
)

// HistoryEntry records one raw SQL execution.
type HistoryEntry struct {
	ID        string         `json:"id"`
	SQL       string         `json:"sql"`
	Success   bool           `json:"success"`
	Result    *api.ResultSet `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// History is a fixed-size ring of SQL runs, newest first. Every mutation
// is flushed to the KV store before it returns.
type History struct {
	kv KV

	mu   sync.Mutex
	buf  [HistoryCapacity]HistoryEntry
	head int // index of the newest entry
	n    int
}

// LoadHistory restores the ring from kv. A nil kv keeps history in
// memory only.
func LoadHistory(kv KV) (*History, error) {
	h := &History{kv: kv}
	if kv == nil {
		return h, nil
	}
	var saved []HistoryEntry
	if _, err := kv.GetJSON(HistoryKey, &saved); err != nil {
		return h, fmt.Errorf("load sql history: %w", err)
	}
	if len(saved) > HistoryCapacity {
		saved = saved[:HistoryCapacity]
	}
	for i := len(saved) - 1; i >= 0; i-- {
		h.push(saved[i])
	}
	metrics.HistoryEntries.Set(float64(h.n))
	return h, nil
}

func (h *History) push(e HistoryEntry) {
	h.head = (h.head - 1 + HistoryCapacity) % HistoryCapacity
	h.buf[h.head] = e
	if h.n < HistoryCapacity {
		h.n++
	}
}

func (h *History) entries() []HistoryEntry {
	out := make([]HistoryEntry, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.head+i)%HistoryCapacity]
	}
	return out
}

func (h *History) flush() error {
	metrics.HistoryEntries.Set(float64(h.n))
	if h.kv == nil {
		return nil
	}
	if h.n == 0 {
		return h.kv.Delete(HistoryKey)
	}
	return h.kv.PutJSON(HistoryKey, h.entries())
}

// Push adds e as the newest entry, evicting the oldest beyond capacity.
func (h *History) Push(e HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.push(e)
	return h.flush()
}

// Entries returns the history newest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries()
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// Get finds an entry by id.
func (h *History) Get(id string) (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := 0; i < h.n; i++ {
		if e := h.buf[(h.head+i)%HistoryCapacity]; e.ID == id {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

// Clear empties the ring and removes the stored copy.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf = [HistoryCapacity]HistoryEntry{}
	h.head, h.n = 0, 0
	return h.flush()
}
