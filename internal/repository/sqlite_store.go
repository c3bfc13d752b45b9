package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"psybot/internal/models"
)

// SQLiteStore persists users and submissions in an embedded SQLite database.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *zap.Logger
	// serialises id allocation; sqlite itself serialises writers
	mu sync.Mutex
}

type userRow struct {
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	State     string    `db:"state"`
	Session   string    `db:"session"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type submissionRow struct {
	Seq           int64      `db:"seq"`
	ID            string     `db:"id"`
	OwnerUserID   int64      `db:"owner_user_id"`
	Variant       string     `db:"variant"`
	TopicID       string     `db:"topic_id"`
	TopicTitle    string     `db:"topic_title"`
	Questions     string     `db:"questions"`
	Answers       string     `db:"answers"`
	GeneratedText string     `db:"generated_text"`
	Status        string     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	DecidedAt     *time.Time `db:"decided_at"`
}

const submissionColumns = `seq, id, owner_user_id, variant, topic_id, topic_title, questions, answers,
		generated_text, status, created_at, decided_at`

// NewSQLiteStore opens the database at dbPath and creates the schema.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("SQLite store initialized", zap.String("db_path", dbPath))

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL,
		session TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submissions (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		owner_user_id INTEGER NOT NULL,
		variant TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		topic_title TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL,
		answers TEXT NOT NULL,
		generated_text TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		decided_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
	CREATE INDEX IF NOT EXISTS idx_submissions_owner ON submissions(owner_user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*models.UserRecord, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, username, state, session, created_at, updated_at
		FROM users
		WHERE user_id = ?
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rec := &models.UserRecord{
		UserID:    row.UserID,
		Username:  row.Username,
		State:     models.State(row.State),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.Session), &rec.Session); err != nil {
		s.logger.Warn("Dropping unreadable session data",
			zap.Int64("user_id", userID),
			zap.Error(err))
		rec.Session = models.Session{}
	}
	return rec, nil
}

func (s *SQLiteStore) SaveUser(ctx context.Context, rec *models.UserRecord) error {
	session, err := json.Marshal(rec.Session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	now := time.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, state, session, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			state = excluded.state,
			session = excluded.session,
			updated_at = excluded.updated_at
	`, rec.UserID, rec.Username, string(rec.State), string(session), created, now)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetState(ctx context.Context, userID int64) (models.State, bool, error) {
	var state string
	err := s.db.GetContext(ctx, &state, `SELECT state FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get state: %w", err)
	}
	return models.State(state), true, nil
}

func (s *SQLiteStore) SetState(ctx context.Context, userID int64, state models.State) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, userID, string(state), now, now)
	if err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSubmission(ctx context.Context, userID int64, draft models.SubmissionDraft) (string, error) {
	if err := validateDraft(draft); err != nil {
		return "", err
	}

	questions, err := json.Marshal(draft.Questions)
	if err != nil {
		return "", fmt.Errorf("failed to encode questions: %w", err)
	}
	answers, err := json.Marshal(draft.Answers)
	if err != nil {
		return "", fmt.Errorf("failed to encode answers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM submissions`); err != nil {
		return "", fmt.Errorf("failed to allocate submission id: %w", err)
	}
	id := submissionID(userID, seq)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (
			seq, id, owner_user_id, variant, topic_id, topic_title, questions, answers,
			generated_text, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seq,
		id,
		userID,
		string(draft.Variant),
		draft.TopicID,
		draft.TopicTitle,
		string(questions),
		string(answers),
		draft.GeneratedText,
		string(models.StatusPending),
		time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit submission: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var row submissionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return row.toModel()
}

func (s *SQLiteStore) ListPendingSubmissions(ctx context.Context) ([]*models.Submission, error) {
	return s.list(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE status = ? ORDER BY seq ASC`,
		string(models.StatusPending))
}

func (s *SQLiteStore) ListUserSubmissions(ctx context.Context, userID int64) ([]*models.Submission, error) {
	return s.list(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE owner_user_id = ? ORDER BY seq ASC`,
		userID)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...interface{}) ([]*models.Submission, error) {
	var rows []submissionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}

	out := make([]*models.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := row.toModel()
		if err != nil {
			s.logger.Error("Failed to decode submission", zap.String("submission_id", row.ID), zap.Error(err))
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *SQLiteStore) SetSubmissionStatus(ctx context.Context, id string, status models.SubmissionStatus) (bool, error) {
	if err := validateDecision(status); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`, string(status), time.Now().UTC(), id, string(models.StatusPending))
	if err != nil {
		return false, fmt.Errorf("failed to update submission status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (r submissionRow) toModel() (*models.Submission, error) {
	sub := &models.Submission{
		ID:            r.ID,
		Seq:           r.Seq,
		OwnerUserID:   r.OwnerUserID,
		Variant:       models.Variant(r.Variant),
		TopicID:       r.TopicID,
		TopicTitle:    r.TopicTitle,
		GeneratedText: r.GeneratedText,
		Status:        models.SubmissionStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		DecidedAt:     r.DecidedAt,
	}
	if err := json.Unmarshal([]byte(r.Questions), &sub.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Answers), &sub.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return sub, nil
}
