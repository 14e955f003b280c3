// Package confirm holds suggestions that wait for a yes/no from the user,
// keyed by project.
package confirm

import (
	"sync"
	"time"

	"github.com/ChamsBouzaiene/assist/internal/engine"
)

// Suggestion is a validated plan held until the user answers.
type Suggestion struct {
	ProjectID string
	SessionID string
	Plan      engine.ExecutionPlan
	CreatedAt time.Time
}

// Titles lists the proposed work item titles in plan order.
func (s *Suggestion) Titles() []string {
	var out []string
	for _, step := range s.Plan.Steps {
		if t, ok := step.Params["title"].(string); ok {
			out = append(out, t)
		}
	}
	return out
}

type slot struct {
	mu         sync.Mutex
	suggestion *Suggestion
}

// Store is the PendingSuggestion table. Each project key has its own lock;
// the map lock only guards slot creation.
type Store struct {
	mu    sync.Mutex
	slots map[string]*slot
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{slots: make(map[string]*slot), now: time.Now}
}

func (s *Store) slot(projectID string) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[projectID]
	if !ok {
		sl = &slot{}
		s.slots[projectID] = sl
	}
	return sl
}

// Set stores a suggestion for the project, replacing any unconfirmed one.
func (s *Store) Set(projectID, sessionID string, plan engine.ExecutionPlan) *Suggestion {
	sug := &Suggestion{ProjectID: projectID, SessionID: sessionID, Plan: plan, CreatedAt: s.now()}
	sl := s.slot(projectID)
	sl.mu.Lock()
	sl.suggestion = sug
	sl.mu.Unlock()
	return sug
}

// Take returns and clears the project's suggestion in one step, so a given
// suggestion is handed out at most once.
func (s *Store) Take(projectID string) (*Suggestion, bool) {
	sl := s.slot(projectID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sug := sl.suggestion
	sl.suggestion = nil
	return sug, sug != nil
}

// Peek returns the project's suggestion without clearing it.
func (s *Store) Peek(projectID string) (*Suggestion, bool) {
	sl := s.slot(projectID)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.suggestion, sl.suggestion != nil
}

// Clear drops the project's suggestion, if any.
func (s *Store) Clear(projectID string) {
	sl := s.slot(projectID)
	sl.mu.Lock()
	sl.suggestion = nil
	sl.mu.Unlock()
}
