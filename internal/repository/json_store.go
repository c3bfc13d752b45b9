package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"psybot/internal/models"
)

type document struct {
	Users       map[string]*models.UserRecord `json:"users"`
	Submissions map[string]*models.Submission `json:"submissions"`
	NextSeq     int64                         `json:"next_seq"`
}

// JSONStore keeps the whole store in memory and rewrites one JSON document
// on every mutation. Only a single process may use a given file.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	doc    document
	logger *zap.Logger
}

// NewJSONStore opens (or creates) the document at path.
func NewJSONStore(path string, logger *zap.Logger) (*JSONStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	s := &JSONStore{path: path, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Info("JSON store initialized",
		zap.String("path", path),
		zap.Int("users", len(s.doc.Users)),
		zap.Int("submissions", len(s.doc.Submissions)))

	return s, nil
}

func (s *JSONStore) load() error {
	s.doc = document{
		Users:       make(map[string]*models.UserRecord),
		Submissions: make(map[string]*models.Submission),
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return fmt.Errorf("failed to decode store file: %w", err)
	}
	if s.doc.Users == nil {
		s.doc.Users = make(map[string]*models.UserRecord)
	}
	if s.doc.Submissions == nil {
		s.doc.Submissions = make(map[string]*models.Submission)
	}
	for _, sub := range s.doc.Submissions {
		if sub.Seq > s.doc.NextSeq {
			s.doc.NextSeq = sub.Seq
		}
	}
	return nil
}

// flush writes the document to a temp file, syncs it and renames it over
// the store file. Must be called with mu held.
func (s *JSONStore) flush() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (s *JSONStore) GetUser(_ context.Context, userID int64) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.doc.Users[userKey(userID)]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *JSONStore) SaveUser(_ context.Context, rec *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(rec.UserID)
	prev, existed := s.doc.Users[key]

	next := rec.Clone()
	if existed && !prev.CreatedAt.IsZero() {
		next.CreatedAt = prev.CreatedAt
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}
	next.UpdatedAt = time.Now().UTC()
	s.doc.Users[key] = next

	if err := s.flush(); err != nil {
		if existed {
			s.doc.Users[key] = prev
		} else {
			delete(s.doc.Users, key)
		}
		return err
	}
	return nil
}

func (s *JSONStore) GetState(ctx context.Context, userID int64) (models.State, bool, error) {
	rec, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.State, true, nil
}

func (s *JSONStore) SetState(ctx context.Context, userID int64, state models.State) error {
	rec, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		rec = models.NewUserRecord(userID)
	} else if err != nil {
		return err
	}
	rec.State = state
	return s.SaveUser(ctx, rec)
}

func (s *JSONStore) SaveSubmission(_ context.Context, userID int64, draft models.SubmissionDraft) (string, error) {
	if err := validateDraft(draft); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.doc.NextSeq + 1
	id := submissionID(userID, seq)
	for {
		if _, taken := s.doc.Submissions[id]; !taken {
			break
		}
		seq++
		id = submissionID(userID, seq)
	}

	sub := &models.Submission{
		ID:            id,
		Seq:           seq,
		OwnerUserID:   userID,
		Variant:       draft.Variant,
		TopicID:       draft.TopicID,
		TopicTitle:    draft.TopicTitle,
		Questions:     append([]string(nil), draft.Questions...),
		Answers:       append([]string(nil), draft.Answers...),
		GeneratedText: draft.GeneratedText,
		Status:        models.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	prevSeq := s.doc.NextSeq
	s.doc.Submissions[id] = sub
	s.doc.NextSeq = seq

	if err := s.flush(); err != nil {
		delete(s.doc.Submissions, id)
		s.doc.NextSeq = prevSeq
		return "", err
	}
	return id, nil
}

func (s *JSONStore) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.doc.Submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSubmission(sub), nil
}

func (s *JSONStore) ListPendingSubmissions(_ context.Context) ([]*models.Submission, error) {
	return s.filter(func(sub *models.Submission) bool {
		return sub.Status == models.StatusPending
	}), nil
}

func (s *JSONStore) ListUserSubmissions(_ context.Context, userID int64) ([]*models.Submission, error) {
	return s.filter(func(sub *models.Submission) bool {
		return sub.OwnerUserID == userID
	}), nil
}

// filter returns matching submissions in insertion order.
func (s *JSONStore) filter(keep func(*models.Submission) bool) []*models.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Submission, 0)
	for _, sub := range s.doc.Submissions {
		if keep(sub) {
			out = append(out, cloneSubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (s *JSONStore) SetSubmissionStatus(_ context.Context, id string, status models.SubmissionStatus) (bool, error) {
	if err := validateDecision(status); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.doc.Submissions[id]
	if !ok {
		s.logger.Warn("Status change for unknown submission", zap.String("submission_id", id))
		return false, nil
	}
	if !sub.Status.CanTransition(status) {
		return false, nil
	}

	prevStatus, prevDecided := sub.Status, sub.DecidedAt
	now := time.Now().UTC()
	sub.Status = status
	sub.DecidedAt = &now

	if err := s.flush(); err != nil {
		sub.Status, sub.DecidedAt = prevStatus, prevDecided
		return false, err
	}
	return true, nil
}

// Close is a no-op; every mutation is already on disk.
func (s *JSONStore) Close() error {
	return nil
}
