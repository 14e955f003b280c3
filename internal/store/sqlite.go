package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ChamsBouzaiene/assist/internal/embedding"
	"github.com/ChamsBouzaiene/assist/internal/model"
)

// SQLite implements RecordStore and SessionStore on a single SQLite file,
// with a bleve index for keyword search.
type SQLite struct {
	db     *sql.DB
	search *SearchIndex
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a SQLite store.
type Option func(*SQLite)

// WithLogger sets the logger used for index maintenance warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLite) { s.logger = l }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLite) { s.now = now }
}

// Open opens (or creates) the database at dbPath. The keyword index lives
// next to it at dbPath+".bleve"; ":memory:" keeps both in memory.
func Open(ctx context.Context, dbPath string, opts ...Option) (*SQLite, error) {
	s := &SQLite{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	indexPath := dbPath + ".bleve"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
		indexPath = ""
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	search, fresh, err := NewSearchIndex(indexPath, s.logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.search = search

	if fresh {
		if err := s.reindexAll(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to rebuild search index: %w", err)
		}
	}
	return s, nil
}

// Close closes the database and the search index.
func (s *SQLite) Close() error {
	return errors.Join(s.search.Close(), s.db.Close())
}

func (s *SQLite) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		status     TEXT NOT NULL,
		title      TEXT,
		created_at INTEGER NOT NULL,
		ended_at   INTEGER
	);

	-- At most one open session per project
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open
		ON sessions(project_id) WHERE status = 'open';

	CREATE TABLE IF NOT EXISTS turns (
		turn_id    TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		user_text  TEXT NOT NULL,
		agent_text TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);

	CREATE TABLE IF NOT EXISTS work_items (
		item_id     TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		priority    TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL,
		embedding   BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_work_items_project ON work_items(project_id, status);

	CREATE TABLE IF NOT EXISTS notes (
		note_id      TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL,
		category     TEXT NOT NULL,
		content      TEXT NOT NULL,
		consolidated INTEGER NOT NULL DEFAULT 0,
		sections     TEXT,
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		embedding    BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_notes_project ON notes(project_id, category);

	-- At most one consolidated note per category
	CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_consolidated
		ON notes(project_id, category) WHERE consolidated = 1;
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func toUnix(t time.Time) int64 { return t.UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n) }

// --- sessions ---------------------------------------------------------------

func (s *SQLite) OpenSession(ctx context.Context, projectID string) (*model.Session, error) {
	if projectID == "" {
		return nil, fmt.Errorf("open session: empty project id")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM sessions WHERE project_id = ? AND status = 'open'`, projectID)
	var id string
	err := row.Scan(&id)
	switch {
	case err == nil:
		return s.GetSession(ctx, id)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("open session: %w", err)
	}

	sess := &model.Session{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    model.SessionOpen,
		CreatedAt: s.now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, project_id, status, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.ProjectID, string(sess.Status), toUnix(sess.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *SQLite) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT session_id, project_id, status, title, created_at, ended_at FROM sessions WHERE session_id = ?`, sessionID))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_id, session_id, seq, user_text, agent_text, created_at
		 FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Turn
		var created int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.UserText, &t.AgentText, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = fromUnix(created)
		sess.Turns = append(sess.Turns, t)
	}
	return sess, rows.Err()
}

func (s *SQLite) scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var sess model.Session
	var status string
	var title sql.NullString
	var created int64
	var ended sql.NullInt64
	if err := row.Scan(&sess.ID, &sess.ProjectID, &status, &title, &created, &ended); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = model.SessionStatus(status)
	sess.Title = title.String
	sess.CreatedAt = fromUnix(created)
	if ended.Valid {
		t := fromUnix(ended.Int64)
		sess.EndedAt = &t
	}
	return &sess, nil
}

func (s *SQLite) AppendTurn(ctx context.Context, sessionID, userText string) (*model.Turn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE session_id = ?`, sessionID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrNotFound)
		}
		return nil, err
	}
	if model.SessionStatus(status) != model.SessionOpen {
		return nil, fmt.Errorf("session %s: %w", sessionID, model.ErrSessionClosed)
	}

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, sessionID).Scan(&seq); err != nil {
		return nil, err
	}

	turn := &model.Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Seq:       seq,
		UserText:  userText,
		CreatedAt: s.now(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (turn_id, session_id, seq, user_text, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.Seq, turn.UserText, toUnix(turn.CreatedAt)); err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}
	return turn, tx.Commit()
}

func (s *SQLite) SetAgentText(ctx context.Context, turnID, agentText string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE turns SET agent_text = ? WHERE turn_id = ?`, agentText, turnID)
	if err != nil {
		return fmt.Errorf("set agent text: %w", err)
	}
	return expectOne(res, "turn")
}

func (s *SQLite) EndSession(ctx context.Context, sessionID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'ended', title = ?, ended_at = ? WHERE session_id = ? AND status = 'open'`,
		title, toUnix(s.now()), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT session_id, project_id, status, title, created_at, ended_at FROM sessions WHERE session_id = ?`, sessionID)); err != nil {
		return err
	}
	return fmt.Errorf("session %s: %w", sessionID, model.ErrSessionClosed)
}

func (s *SQLite) ListSessions(ctx context.Context, projectID string) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, project_id, status, title, created_at, ended_at
		 FROM sessions WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		sess, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// --- work items -------------------------------------------------------------

const workItemColumns = `item_id, project_id, title, description, status, priority, created_at, updated_at, embedding`

func scanWorkItem(row interface{ Scan(...any) error }) (*model.WorkItem, error) {
	var w model.WorkItem
	var status, priority string
	var created, updated int64
	var blob []byte
	if err := row.Scan(&w.ID, &w.ProjectID, &w.Title, &w.Description, &status, &priority, &created, &updated, &blob); err != nil {
		return nil, err
	}
	w.Status = model.Status(status)
	w.Priority = model.Priority(priority)
	w.CreatedAt = fromUnix(created)
	w.UpdatedAt = fromUnix(updated)
	vec, err := embedding.DecodeVector(blob)
	if err != nil {
		return nil, err
	}
	w.Embedding = vec
	return &w, nil
}

func (s *SQLite) ListWorkItems(ctx context.Context, projectID string, includeDone bool) ([]*model.WorkItem, error) {
	q := `SELECT ` + workItemColumns + ` FROM work_items WHERE project_id = ?`
	if !includeDone {
		q += ` AND status != 'done'`
	}
	q += ` ORDER BY updated_at DESC, item_id`

	rows, err := s.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var out []*model.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLite) GetWorkItem(ctx context.Context, projectID, id string) (*model.WorkItem, error) {
	w, err := scanWorkItem(s.db.QueryRowContext(ctx,
		`SELECT `+workItemColumns+` FROM work_items WHERE project_id = ? AND item_id = ?`, projectID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("work item %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return w, nil
}

func (s *SQLite) CreateWorkItem(ctx context.Context, item *model.WorkItem) error {
	if item.ProjectID == "" {
		return fmt.Errorf("create work item: empty project id")
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = model.StatusOpen
	}
	if item.Priority == "" {
		item.Priority = model.PriorityMedium
	}
	now := s.now()
	item.CreatedAt, item.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO work_items (`+workItemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ProjectID, item.Title, item.Description, string(item.Status), string(item.Priority),
		toUnix(item.CreatedAt), toUnix(item.UpdatedAt), embedding.EncodeVector(item.Embedding))
	if err != nil {
		return fmt.Errorf("create work item: %w", err)
	}
	s.indexWorkItem(item)
	return nil
}

func (s *SQLite) UpdateWorkItem(ctx context.Context, item *model.WorkItem) error {
	item.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE work_items SET title = ?, description = ?, status = ?, priority = ?, updated_at = ?, embedding = ?
		 WHERE project_id = ? AND item_id = ?`,
		item.Title, item.Description, string(item.Status), string(item.Priority), toUnix(item.UpdatedAt),
		embedding.EncodeVector(item.Embedding), item.ProjectID, item.ID)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	if err := expectOne(res, "work item "+item.ID); err != nil {
		return err
	}
	s.indexWorkItem(item)
	return nil
}

func (s *SQLite) DeleteWorkItem(ctx context.Context, projectID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM work_items WHERE project_id = ? AND item_id = ?`, projectID, id)
	if err != nil {
		return fmt.Errorf("delete work item: %w", err)
	}
	if err := expectOne(res, "work item "+id); err != nil {
		return err
	}
	if err := s.search.Delete(id); err != nil {
		s.logger.Warn("search index delete failed", zap.String("id", id), zap.Error(err))
	}
	return nil
}

func (s *SQLite) SearchWorkItems(ctx context.Context, projectID, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	return s.search.Search(projectID, kindWorkItem, query, limit)
}

func (s *SQLite) indexWorkItem(item *model.WorkItem) {
	if err := s.search.IndexWorkItem(item.ProjectID, item.ID, item.Title, item.Description); err != nil {
		s.logger.Warn("search index update failed", zap.String("id", item.ID), zap.Error(err))
	}
}

// --- notes ------------------------------------------------------------------

const noteColumns = `note_id, project_id, category, content, consolidated, sections, created_at, updated_at, embedding`

func scanNote(row interface{ Scan(...any) error }) (*model.Note, error) {
	var n model.Note
	var consolidated int
	var sections sql.NullString
	var created, updated int64
	var blob []byte
	if err := row.Scan(&n.ID, &n.ProjectID, &n.Category, &n.Content, &consolidated, &sections, &created, &updated, &blob); err != nil {
		return nil, err
	}
	n.Consolidated = consolidated == 1
	n.CreatedAt = fromUnix(created)
	n.UpdatedAt = fromUnix(updated)
	if sections.Valid && sections.String != "" {
		if err := json.Unmarshal([]byte(sections.String), &n.Sections); err != nil {
			return nil, fmt.Errorf("decode sections of note %s: %w", n.ID, err)
		}
	}
	vec, err := embedding.DecodeVector(blob)
	if err != nil {
		return nil, err
	}
	n.Embedding = vec
	return &n, nil
}

func encodeSections(sections []model.Section) (sql.NullString, error) {
	if len(sections) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(sections)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLite) ListNotes(ctx context.Context, projectID, category string) ([]*model.Note, error) {
	q := `SELECT ` + noteColumns + ` FROM notes WHERE project_id = ?`
	args := []any{projectID}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY updated_at DESC, note_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []*model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLite) GetNote(ctx context.Context, projectID, id string) (*model.Note, error) {
	n, err := scanNote(s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE project_id = ? AND note_id = ?`, projectID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return n, nil
}

func (s *SQLite) CreateNote(ctx context.Context, note *model.Note) error {
	if note.ProjectID == "" {
		return fmt.Errorf("create note: empty project id")
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := s.now()
	note.CreatedAt, note.UpdatedAt = now, now

	sections, err := encodeSections(note.Sections)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.ProjectID, note.Category, note.Content, boolToInt(note.Consolidated), sections,
		toUnix(note.CreatedAt), toUnix(note.UpdatedAt), embedding.EncodeVector(note.Embedding))
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	s.indexNote(note)
	return nil
}

func (s *SQLite) UpdateNote(ctx context.Context, note *model.Note) error {
	note.UpdatedAt = s.now()
	sections, err := encodeSections(note.Sections)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET category = ?, content = ?, consolidated = ?, sections = ?, updated_at = ?, embedding = ?
		 WHERE project_id = ? AND note_id = ?`,
		note.Category, note.Content, boolToInt(note.Consolidated), sections, toUnix(note.UpdatedAt),
		embedding.EncodeVector(note.Embedding), note.ProjectID, note.ID)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if err := expectOne(res, "note "+note.ID); err != nil {
		return err
	}
	s.indexNote(note)
	return nil
}

func (s *SQLite) DeleteNote(ctx context.Context, projectID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE project_id = ? AND note_id = ?`, projectID, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if err := expectOne(res, "note "+id); err != nil {
		return err
	}
	if err := s.search.Delete(id); err != nil {
		s.logger.Warn("search index delete failed", zap.String("id", id), zap.Error(err))
	}
	return nil
}

func (s *SQLite) SearchNotes(ctx context.Context, projectID, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	return s.search.Search(projectID, kindNote, query, limit)
}

func (s *SQLite) indexNote(note *model.Note) {
	if err := s.search.IndexNote(note.ProjectID, note.ID, note.Category, note.FullText()); err != nil {
		s.logger.Warn("search index update failed", zap.String("id", note.ID), zap.Error(err))
	}
}

// Reindex rebuilds the keyword index for a project from the database.
func (s *SQLite) Reindex(ctx context.Context, projectID string) error {
	items, err := s.ListWorkItems(ctx, projectID, true)
	if err != nil {
		return err
	}
	for _, w := range items {
		if err := s.search.IndexWorkItem(w.ProjectID, w.ID, w.Title, w.Description); err != nil {
			return fmt.Errorf("reindex work item %s: %w", w.ID, err)
		}
	}
	notes, err := s.ListNotes(ctx, projectID, "")
	if err != nil {
		return err
	}
	for _, n := range notes {
		if err := s.search.IndexNote(n.ProjectID, n.ID, n.Category, n.FullText()); err != nil {
			return fmt.Errorf("reindex note %s: %w", n.ID, err)
		}
	}
	return nil
}

// reindexAll repopulates a freshly created index from every project that has
// work items or notes.
func (s *SQLite) reindexAll(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id FROM work_items UNION SELECT project_id FROM notes`)
	if err != nil {
		return err
	}
	var projects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		projects = append(projects, id)
	}
	if err := errors.Join(rows.Err(), rows.Close()); err != nil {
		return err
	}

	for _, p := range projects {
		if err := s.Reindex(ctx, p); err != nil {
			return err
		}
	}
	if len(projects) > 0 {
		s.logger.Info("search index rebuilt", zap.Int("projects", len(projects)))
	}
	return nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return nil
}
