package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"psybot/internal/admin"
	"psybot/internal/middleware"
	"psybot/internal/models"
	"psybot/internal/moderation"
	"psybot/internal/repository"
)

const testSecret = "test-secret"

func issue(t *testing.T, secret string, adminID int64) string {
	t.Helper()
	token, _, err := middleware.NewTokenIssuer(secret, time.Hour).Issue(adminID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return "Bearer " + token
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims *middleware.AdminClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

type nopSender struct {
	mu   sync.Mutex
	sent map[int64]int
}

func (s *nopSender) Send(_ context.Context, chatID int64, _ models.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[int64]int{}
	}
	s.sent[chatID]++
	return nil
}

func setup(t *testing.T) (http.Handler, *moderation.Queue, *nopSender) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store, err := repository.NewJSONStore(filepath.Join(t.TempDir(), "db.json"), logger)
	if err != nil {
		t.Fatal(err)
	}
	sender := &nopSender{}
	admins := admin.NewChannel([]int64{77}, sender, logger)
	queue := moderation.NewQueue(store, admins, sender, logger)
	opts := Options{Host: "127.0.0.1", Port: "0", Secret: testSecret}
	return NewServer(opts, queue, admins, logger).Handler(), queue, sender
}

func enqueue(t *testing.T, q *moderation.Queue, userID int64) string {
	t.Helper()
	id, err := q.Enqueue(context.Background(), userID, "", models.SubmissionDraft{
		Variant:       models.VariantBasic,
		TopicID:       "emotions",
		Questions:     []string{"q1", "q2", "q3", "q4"},
		Answers:       []string{"a1", "a2", "a3", "a4"},
		GeneratedText: "map",
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func do(t *testing.T, h http.Handler, method, path, auth string) (int, map[string]any) {
	t.Helper()
	return doWithHeaders(t, h, method, path, map[string]string{"Authorization": auth})
}

func doWithHeaders(t *testing.T, h http.Handler, method, path string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	h, _, _ := setup(t)
	code, body := do(t, h, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", code, body)
	}
}

func TestAdminTokenRequired(t *testing.T) {
	h, _, _ := setup(t)
	now := time.Now()
	expired := &middleware.AdminClaims{
		AdminID: 77,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "psybot",
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
		},
	}
	unsigned := &middleware.AdminClaims{
		AdminID: 77,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "psybot",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	noExpiry := &middleware.AdminClaims{
		AdminID:          77,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "psybot"},
	}

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic Nzc6Nzc=", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"wrong secret", issue(t, "other-secret", 77), http.StatusUnauthorized},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired), http.StatusUnauthorized},
		{"alg none", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, unsigned), http.StatusUnauthorized},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry), http.StatusUnauthorized},
		{"not admin", issue(t, testSecret, 12), http.StatusForbidden},
		{"admin", issue(t, testSecret, 77), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := do(t, h, http.MethodGet, "/api/v1/moderation/submissions/pending", tt.auth)
			if code != tt.want {
				t.Errorf("code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestApproveWithAdminIDHeaderOnlyRejected(t *testing.T) {
	h, q, sender := setup(t)
	id := enqueue(t, q, 500)

	code, _ := doWithHeaders(t, h, http.MethodPost, "/api/v1/moderation/submissions/"+id+"/approve",
		map[string]string{"X-Admin-ID": "77"})
	if code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", code)
	}

	sub, err := q.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", sub.Status)
	}
	if sender.sent[500] != 0 {
		t.Errorf("owner notified %d times, want 0", sender.sent[500])
	}
}

func TestServerWithoutSecretRejectsEveryToken(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store, err := repository.NewJSONStore(filepath.Join(t.TempDir(), "db.json"), logger)
	if err != nil {
		t.Fatal(err)
	}
	admins := admin.NewChannel([]int64{77}, &nopSender{}, logger)
	h := NewServer(Options{Host: "127.0.0.1", Port: "0"}, moderation.NewQueue(store, admins, &nopSender{}, logger), admins, logger).Handler()

	forged := sign(t, jwt.SigningMethodHS256, []byte("guessed"), &middleware.AdminClaims{
		AdminID: 77,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "psybot",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	code, _ := do(t, h, http.MethodGet, "/api/v1/moderation/submissions/pending", forged)
	if code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", code)
	}
}

func TestModerationFlow(t *testing.T) {
	h, q, sender := setup(t)
	testAdmin := issue(t, testSecret, 77)
	first := enqueue(t, q, 1)
	second := enqueue(t, q, 2)

	code, body := do(t, h, http.MethodGet, "/api/v1/moderation/submissions/pending", testAdmin)
	if code != http.StatusOK || body["count"].(float64) != 2 {
		t.Fatalf("pending = %d %v", code, body)
	}
	subs := body["submissions"].([]any)
	if subs[0].(map[string]any)["id"] != first || subs[1].(map[string]any)["id"] != second {
		t.Errorf("pending not in insertion order: %v", subs)
	}

	code, body = do(t, h, http.MethodPost, "/api/v1/moderation/submissions/"+first+"/approve", testAdmin)
	if code != http.StatusOK || body["outcome"] != "applied" || body["status"] != "approved" || body["delivered"] != true {
		t.Fatalf("approve = %d %v", code, body)
	}

	code, body = do(t, h, http.MethodPost, "/api/v1/moderation/submissions/"+first+"/reject", testAdmin)
	if code != http.StatusOK || body["outcome"] != "already_decided" || body["status"] != "approved" {
		t.Fatalf("reject after approve = %d %v", code, body)
	}

	code, body = do(t, h, http.MethodPost, "/api/v1/moderation/submissions/map_9_9/reject", testAdmin)
	if code != http.StatusOK || body["outcome"] != "not_found" {
		t.Fatalf("unknown = %d %v", code, body)
	}

	code, body = do(t, h, http.MethodGet, "/api/v1/moderation/submissions/"+second, testAdmin)
	if code != http.StatusOK || body["status"] != "pending" {
		t.Fatalf("get = %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodGet, "/api/v1/moderation/submissions/map_9_9", testAdmin)
	if code != http.StatusNotFound {
		t.Fatalf("get unknown = %d", code)
	}

	code, body = do(t, h, http.MethodGet, "/api/v1/moderation/users/1/submissions", testAdmin)
	if code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("user submissions = %d %v", code, body)
	}
	code, _ = do(t, h, http.MethodGet, "/api/v1/moderation/users/abc/submissions", testAdmin)
	if code != http.StatusBadRequest {
		t.Fatalf("bad user id = %d", code)
	}

	if sender.sent[1] != 1 {
		t.Errorf("owner notified %d times, want 1", sender.sent[1])
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store, err := repository.NewJSONStore(filepath.Join(t.TempDir(), "db.json"), logger)
	if err != nil {
		t.Fatal(err)
	}
	admins := admin.NewChannel(nil, &nopSender{}, logger)
	srv := NewServer(Options{Host: "127.0.0.1", Port: "0", Secret: testSecret}, moderation.NewQueue(store, admins, &nopSender{}, logger), admins, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
