// Package model holds the persistent records shared across the assistant:
// sessions and their turns, work items and notes.
package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSessionClosed     = errors.New("session is closed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Turn is one user message plus the assistant's eventual reply.
// Only AgentText changes after creation.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	UserText  string    `json:"user_text"`
	AgentText string    `json:"agent_text"`
	CreatedAt time.Time `json:"created_at"`
	Embedding []float32 `json:"-"`
}

type SessionStatus string

const (
	SessionOpen  SessionStatus = "open"
	SessionEnded SessionStatus = "ended"
)

// Session is an append-only log of turns for one project plus a closed flag.
type Session struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	Status    SessionStatus `json:"status"`
	Title     string        `json:"title,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Turns     []Turn        `json:"turns,omitempty"`
}

// Closed reports whether the session no longer accepts turns.
func (s *Session) Closed() bool { return s.Status == SessionEnded }

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

var statusRank = map[Status]int{StatusOpen: 0, StatusInProgress: 1, StatusDone: 2}

// ParseStatus accepts the canonical names plus a few common spellings.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "open", "todo", "to-do":
		return StatusOpen, true
	case "in-progress", "in_progress", "in progress", "started", "doing":
		return StatusInProgress, true
	case "done", "complete", "completed", "finished", "closed":
		return StatusDone, true
	}
	return "", false
}

// CanTransition reports whether a work item may move from one status to another.
// Status only moves forward; skipping in-progress is allowed.
func CanTransition(from, to Status) bool {
	f, ok1 := statusRank[from]
	t, ok2 := statusRank[to]
	return ok1 && ok2 && t > f
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type WorkItem struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Embedding   []float32 `json:"-"`
}

// EmbeddingText is the text a work item is embedded and indexed under.
func (w *WorkItem) EmbeddingText() string {
	if w.Description == "" {
		return w.Title
	}
	return w.Title + "\n" + w.Description
}

// Section is a named, versioned block of a consolidated note.
type Section struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Version   int       `json:"version"`
}

type Note struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Category     string    `json:"category"`
	Content      string    `json:"content"`
	Consolidated bool      `json:"consolidated"`
	Sections     []Section `json:"sections,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Embedding    []float32 `json:"-"`
}

// Version is the highest section version, or 0 for a plain note.
func (n *Note) Version() int {
	v := 0
	for _, s := range n.Sections {
		if s.Version > v {
			v = s.Version
		}
	}
	return v
}

// FullText returns the note body followed by its sections.
func (n *Note) FullText() string {
	text := n.Content
	for _, s := range n.Sections {
		text += fmt.Sprintf("\n\n## %s\n%s", s.Name, s.Content)
	}
	return text
}

// RankKey, RankVector and RankTime let work items and notes be ranked by similarity.
func (w *WorkItem) RankKey() string       { return w.ID }
func (w *WorkItem) RankVector() []float32 { return w.Embedding }
func (w *WorkItem) RankTime() time.Time   { return w.UpdatedAt }

func (n *Note) RankKey() string       { return n.ID }
func (n *Note) RankVector() []float32 { return n.Embedding }
func (n *Note) RankTime() time.Time   { return n.UpdatedAt }

// DefaultCategories are the note categories every project starts with.
var DefaultCategories = []string{"architecture", "decisions", "requirements", "bugs", "conventions", "preferences"}

// GeneralCategory receives notes whose proposed category is not acceptable.
const GeneralCategory = "general"

var categoryPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,31}$`)

// NormalizeCategory lowercases and snake-cases name, returning GeneralCategory
// when the result is not 3-32 characters of [a-z0-9_] starting with a letter.
func NormalizeCategory(name string) string {
	c := strings.ToLower(strings.TrimSpace(name))
	c = strings.NewReplacer(" ", "_", "-", "_").Replace(c)
	if !categoryPattern.MatchString(c) {
		return GeneralCategory
	}
	return c
}
