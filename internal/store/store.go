// Package store persists sessions, work items and notes for the assistant.
package store

import (
	"context"

	"github.com/ChamsBouzaiene/assist/internal/model"
)

// WorkItemStore is record-level access to work items, scoped by project.
type WorkItemStore interface {
	ListWorkItems(ctx context.Context, projectID string, includeDone bool) ([]*model.WorkItem, error)
	GetWorkItem(ctx context.Context, projectID, id string) (*model.WorkItem, error)
	CreateWorkItem(ctx context.Context, item *model.WorkItem) error
	UpdateWorkItem(ctx context.Context, item *model.WorkItem) error
	DeleteWorkItem(ctx context.Context, projectID, id string) error
	// SearchWorkItems returns ids ranked by keyword relevance.
	SearchWorkItems(ctx context.Context, projectID, query string, limit int) ([]string, error)
}

// NoteStore is record-level access to notes, scoped by project.
type NoteStore interface {
	// ListNotes returns all notes of the project, or only those in category when it is non-empty.
	ListNotes(ctx context.Context, projectID, category string) ([]*model.Note, error)
	GetNote(ctx context.Context, projectID, id string) (*model.Note, error)
	CreateNote(ctx context.Context, note *model.Note) error
	UpdateNote(ctx context.Context, note *model.Note) error
	DeleteNote(ctx context.Context, projectID, id string) error
	SearchNotes(ctx context.Context, projectID, query string, limit int) ([]string, error)
}

// RecordStore is the full record store the tools operate on.
type RecordStore interface {
	WorkItemStore
	NoteStore
}

// SessionStore keeps the append-only turn log of each session.
type SessionStore interface {
	// OpenSession returns the project's open session, creating one if needed.
	OpenSession(ctx context.Context, projectID string) (*model.Session, error)
	// GetSession returns the session with its turns in order.
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	AppendTurn(ctx context.Context, sessionID, userText string) (*model.Turn, error)
	SetAgentText(ctx context.Context, turnID, agentText string) error
	// EndSession closes the session. Ending an already ended session fails with model.ErrSessionClosed.
	EndSession(ctx context.Context, sessionID, title string) error
	ListSessions(ctx context.Context, projectID string) ([]*model.Session, error)
}
