package acl

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Decision is one audited permission check.
type Decision struct {
	ID        uuid.UUID `json:"id"`
	Actor     string    `json:"actor"`
	Operation Operation `json:"operation"`
	Type      string    `json:"type"`
	UID       string    `json:"uid,omitempty"`
	Granted   bool      `json:"granted"`
	Timestamp time.Time `json:"timestamp"`
}

// DecisionQuery filters audited decisions. Zero fields match everything.
type DecisionQuery struct {
	Actor     string
	Type      string
	Operation Operation
	Denied    bool
	Since     time.Time
	Limit     int
}

// DecisionStats summarizes decisions for one type.
type DecisionStats struct {
	Type    string `json:"type"`
	Checks  int    `json:"checks"`
	Granted int    `json:"granted"`
	Denied  int    `json:"denied"`
	Actors  int    `json:"actors"`
}

// Auditor keeps the most recent permission decisions in memory.
type Auditor struct {
	mu       sync.RWMutex
	entries  []Decision
	capacity int
}

// NewAuditor keeps at most capacity decisions, dropping the oldest first.
func NewAuditor(capacity int) *Auditor {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Auditor{capacity: capacity}
}

// Record appends a decision.
func (au *Auditor) Record(a *Actor, op Operation, typeName, uid string, granted bool) {
	au.mu.Lock()
	defer au.mu.Unlock()

	if len(au.entries) >= au.capacity {
		au.entries = append(au.entries[:0], au.entries[len(au.entries)-au.capacity+1:]...)
	}

	au.entries = append(au.entries, Decision{
		ID:        uuid.New(),
		Actor:     a.Name(),
		Operation: op,
		Type:      typeName,
		UID:       uid,
		Granted:   granted,
		Timestamp: time.Now(),
	})
}

// Query returns matching decisions, newest first.
func (au *Auditor) Query(q DecisionQuery) []Decision {
	au.mu.RLock()
	defer au.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var results []Decision
	for i := len(au.entries) - 1; i >= 0 && len(results) < limit; i-- {
		entry := au.entries[i]
		if q.Actor != "" && entry.Actor != q.Actor {
			continue
		}
		if q.Type != "" && entry.Type != q.Type {
			continue
		}
		if q.Operation != "" && entry.Operation != q.Operation {
			continue
		}
		if q.Denied && entry.Granted {
			continue
		}
		if !q.Since.IsZero() && entry.Timestamp.Before(q.Since) {
			continue
		}
		results = append(results, entry)
	}
	return results
}

// Stats aggregates decisions for typeName.
func (au *Auditor) Stats(typeName string) DecisionStats {
	au.mu.RLock()
	defer au.mu.RUnlock()

	stats := DecisionStats{Type: typeName}
	actors := make(map[string]bool)
	for _, entry := range au.entries {
		if entry.Type != typeName {
			continue
		}
		stats.Checks++
		if entry.Granted {
			stats.Granted++
		} else {
			stats.Denied++
		}
		actors[entry.Actor] = true
	}
	stats.Actors = len(actors)
	return stats
}

// Len returns the number of retained decisions.
func (au *Auditor) Len() int {
	au.mu.RLock()
	defer au.mu.RUnlock()
	return len(au.entries)
}
