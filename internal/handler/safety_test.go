package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeguard/internal/alert"
	"safeguard/internal/models"
	"safeguard/internal/orchestrator"
	"safeguard/internal/safety"
)

type requestIDKey struct{}

// recordingVerifier pairs each verification with the request ID carried by
// its context, sleeping briefly so the pipeline outlives the HTTP handler.
type recordingVerifier struct {
	mu    sync.Mutex
	pairs map[string]string // message ID -> context request ID
	done  chan struct{}
}

func (v *recordingVerifier) Verify(ctx context.Context, text, _ string, _ []models.ChatTurn, _ string) models.ConcernVerdict {
	time.Sleep(5 * time.Millisecond)
	reqID, _ := ctx.Value(requestIDKey{}).(string)
	msgID := strings.TrimPrefix(text, "i want to kill myself ")

	v.mu.Lock()
	v.pairs[msgID] = reqID
	v.mu.Unlock()
	v.done <- struct{}{}

	return models.ConcernVerdict{IsRealConcern: false, ConcernLevel: 0}
}

type noopMessageRepo struct{}

func (noopMessageRepo) FetchPriorMessages(_ context.Context, _, _, _ string, _ time.Time, _ int) ([]models.ChatTurn, error) {
	return nil, nil
}
func (noopMessageRepo) InsertSystemMessage(_ context.Context, _, _, _, _ string, _ models.SafetyMetadata) (string, error) {
	return "", nil
}

type noopProfileRepo struct{}

func (noopProfileRepo) GetProfile(_ context.Context, _ string) (*models.Profile, error) {
	return nil, nil
}

func newSafetyRouter(t *testing.T, verifier orchestrator.Verifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	scanner, err := safety.NewScanner(safety.DefaultKeywordTable)
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	orch := orchestrator.NewOrchestrator(
		scanner,
		verifier,
		noopMessageRepo{},
		&stubFlagRepo{},
		noopProfileRepo{},
		&alert.ConsoleDispatcher{Logger: zap.NewNop()},
		orchestrator.Config{},
		zap.NewNop(),
	)
	h := NewSafetyHandler(orch, zap.NewNop())

	r := gin.New()
	r.POST("/api/safety/check", func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, id))
		h.CheckMessage(c)
	})
	return r
}

func checkBody(msgID string) string {
	return `{"content":"i want to kill myself ` + msgID + `","message_id":"` + msgID +
		`","student_id":"stu-1","room":{"id":"room-1","teacher_id":"t-1","chatbot_id":"bot-1"}}`
}

func TestCheckMessageAccepted(t *testing.T) {
	v := &recordingVerifier{pairs: map[string]string{}, done: make(chan struct{}, 1)}
	r := newSafetyRouter(t, v)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/safety/check", strings.NewReader(checkBody("m1")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "r1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	select {
	case <-v.done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never ran")
	}
}

func TestCheckMessageInvalidPayload(t *testing.T) {
	v := &recordingVerifier{pairs: map[string]string{}, done: make(chan struct{}, 1)}
	r := newSafetyRouter(t, v)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/safety/check", strings.NewReader(`{"content":""}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// The detached pipeline must hold the context it was spawned with. Gin
// recycles the pooled context between requests, so reading c.Request after
// the handler returns can observe a later request's context. Sequential
// requests with a sleeping verifier make that overlap deterministic.
func TestCheckMessageDetachedContextIsOwnRequest(t *testing.T) {
	const n = 25
	v := &recordingVerifier{pairs: map[string]string{}, done: make(chan struct{}, n)}
	r := newSafetyRouter(t, v)

	for i := 0; i < n; i++ {
		id := strconv.Itoa(i)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/safety/check", strings.NewReader(checkBody("m"+id)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", "r"+id)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusAccepted {
			t.Fatalf("request %d: status = %d, want 202", i, w.Code)
		}
	}

	for i := 0; i < n; i++ {
		select {
		case <-v.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d pipeline runs completed", i, n)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for i := 0; i < n; i++ {
		id := strconv.Itoa(i)
		if got := v.pairs["m"+id]; got != "r"+id {
			t.Errorf("message m%s verified with context of request %q, want r%s", id, got, id)
		}
	}
}
