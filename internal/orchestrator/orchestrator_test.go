package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"safeguard/internal/alert"
	"safeguard/internal/models"
	"safeguard/internal/safety"
	"safeguard/internal/verifier"
)

type mockVerifier struct {
	verdict models.ConcernVerdict
	calls   int
}

func (m *mockVerifier) Verify(_ context.Context, _, _ string, _ []models.ChatTurn, _ string) models.ConcernVerdict {
	m.calls++
	return m.verdict
}

type insertedMessage struct {
	roomID    string
	chatbotID string
	content   string
	meta      models.SafetyMetadata
}

type mockMessageRepo struct {
	turns     []models.ChatTurn
	fetchErr  error
	insertErr error
	inserted  []insertedMessage
}

func (m *mockMessageRepo) FetchPriorMessages(_ context.Context, _, _, _ string, _ time.Time, _ int) ([]models.ChatTurn, error) {
	return m.turns, m.fetchErr
}

func (m *mockMessageRepo) InsertSystemMessage(_ context.Context, roomID, _, chatbotID, content string, meta models.SafetyMetadata) (string, error) {
	if m.insertErr != nil {
		return "", m.insertErr
	}
	m.inserted = append(m.inserted, insertedMessage{roomID: roomID, chatbotID: chatbotID, content: content, meta: meta})
	return fmt.Sprintf("msg-%d", len(m.inserted)), nil
}

type mockFlagRepo struct {
	insertErr error
	flags     []*models.Flag
}

func (m *mockFlagRepo) InsertFlag(_ context.Context, flag *models.Flag) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.flags = append(m.flags, flag)
	return nil
}

func (m *mockFlagRepo) GetAllFlags(_ context.Context) ([]*models.Flag, error) { return m.flags, nil }
func (m *mockFlagRepo) GetFlagsByStatus(_ context.Context, _ string) ([]*models.Flag, error) {
	return m.flags, nil
}
func (m *mockFlagRepo) GetFlagByID(_ context.Context, _ string) (*models.Flag, error) {
	return nil, nil
}
func (m *mockFlagRepo) UpdateFlagStatus(_ context.Context, _, _ string) error { return nil }

type mockProfileRepo struct {
	profiles  map[string]*models.Profile
	lookupErr error
}

func (m *mockProfileRepo) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.profiles[userID], nil
}

type mockDispatcher struct {
	sendErr error
	alerts  []alert.TeacherAlert
}

func (m *mockDispatcher) SendTeacherAlert(_ context.Context, a alert.TeacherAlert) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.alerts = append(m.alerts, a)
	return nil
}

type fixture struct {
	orch     *Orchestrator
	verifier *mockVerifier
	messages *mockMessageRepo
	flags    *mockFlagRepo
	profiles *mockProfileRepo
	alerts   *mockDispatcher
}

func newFixture(t *testing.T, verdict models.ConcernVerdict) *fixture {
	t.Helper()
	scanner, err := safety.NewScanner(safety.DefaultKeywordTable)
	if err != nil {
		t.Fatalf("NewScanner failed: %v", err)
	}

	f := &fixture{
		verifier: &mockVerifier{verdict: verdict},
		messages: &mockMessageRepo{},
		flags:    &mockFlagRepo{},
		profiles: &mockProfileRepo{profiles: map[string]*models.Profile{
			"student-1": {ID: "student-1", FullName: "Alex Doe"},
			"teacher-1": {ID: "teacher-1", Email: "teacher@example.com", FullName: "Ms. Rivera"},
		}},
		alerts: &mockDispatcher{},
	}
	f.orch = NewOrchestrator(scanner, f.verifier, f.messages, f.flags, f.profiles, f.alerts, Config{
		EscalationThreshold: 3,
		AdviceThreshold:     2,
		ReviewBaseURL:       "https://app.example.com/teacher/flags",
	}, zap.NewNop())
	return f
}

func testRequest(content string) CheckRequest {
	return CheckRequest{
		Content:   content,
		MessageID: "msg-42",
		StudentID: "student-1",
		Room: models.Room{
			ID:        "room-1",
			Name:      "Year 9 Science",
			TeacherID: "teacher-1",
			ChatbotID: "bot-1",
		},
		CountryCode: "US",
	}
}

func TestNoKeywordHitTerminates(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{})

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("what's the homework for tomorrow?"))

	if result.ConcernType != "" || result.Verified {
		t.Errorf("clean message produced %+v", result)
	}
	if f.verifier.calls != 0 {
		t.Error("verifier called for a message with no lexical match")
	}
	if len(f.flags.flags) != 0 || len(f.messages.inserted) != 0 || len(f.alerts.alerts) != 0 {
		t.Error("side effects produced for a clean message")
	}
}

func TestEscalationAndAdviceAtHighLevel(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{
		IsRealConcern: true,
		ConcernLevel:  4,
		Explanation:   "Direct statement of intent.",
		StudentAdvice: "advice text",
	})

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("I want to kill myself"))

	if !result.Escalated || !result.Advised {
		t.Fatalf("result = %+v, want escalated and advised", result)
	}
	if len(f.flags.flags) != 1 {
		t.Fatalf("flag count = %d, want 1", len(f.flags.flags))
	}
	flag := f.flags.flags[0]
	if flag.ConcernType != safety.CategorySelfHarm || flag.ConcernLevel != 4 || flag.Status != models.FlagStatusPending {
		t.Errorf("unexpected flag: %+v", flag)
	}
	if flag.MessageID != "msg-42" || flag.StudentID != "student-1" || flag.TeacherID != "teacher-1" || flag.RoomID != "room-1" {
		t.Errorf("flag identifiers wrong: %+v", flag)
	}

	if len(f.alerts.alerts) != 1 {
		t.Fatalf("alert count = %d, want 1", len(f.alerts.alerts))
	}
	a := f.alerts.alerts[0]
	if a.TeacherEmail != "teacher@example.com" || a.StudentName != "Alex Doe" || a.RoomName != "Year 9 Science" {
		t.Errorf("alert fields wrong: %+v", a)
	}
	if !strings.Contains(a.ReviewURL, flag.ID) {
		t.Errorf("review URL %q does not reference flag %s", a.ReviewURL, flag.ID)
	}

	if len(f.messages.inserted) != 1 {
		t.Fatalf("advice message count = %d, want 1", len(f.messages.inserted))
	}
	msg := f.messages.inserted[0]
	if !msg.meta.IsSystemSafetyResponse || msg.meta.OriginalConcernType != safety.CategorySelfHarm || msg.meta.OriginalConcernLevel != 4 {
		t.Errorf("advice metadata wrong: %+v", msg.meta)
	}
	if msg.roomID != "room-1" || msg.chatbotID != "bot-1" {
		t.Errorf("advice written outside the conversation: room %q bot %q", msg.roomID, msg.chatbotID)
	}
}

func TestAdviceOnlyBetweenThresholds(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{
		IsRealConcern: true,
		ConcernLevel:  2,
		StudentAdvice: "gentle advice",
	})

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("i've been so depressed lately"))

	if result.Escalated {
		t.Error("level 2 escalated")
	}
	if !result.Advised {
		t.Error("level 2 did not advise")
	}
	if len(f.flags.flags) != 0 || len(f.alerts.alerts) != 0 {
		t.Error("level 2 produced flag or alert")
	}
	if len(f.messages.inserted) != 1 {
		t.Errorf("advice message count = %d, want 1", len(f.messages.inserted))
	}
}

func TestNothingBelowAdviceThreshold(t *testing.T) {
	for _, verdict := range []models.ConcernVerdict{
		{IsRealConcern: true, ConcernLevel: 1, StudentAdvice: "x"},
		{IsRealConcern: true, ConcernLevel: 0},
		{IsRealConcern: false, ConcernLevel: 5, StudentAdvice: "x"},
	} {
		f := newFixture(t, verdict)
		result := f.orch.CheckMessageSafety(context.Background(), testRequest("i've been so depressed lately"))
		if result.Escalated || result.Advised {
			t.Errorf("verdict %+v produced side effects: %+v", verdict, result)
		}
		if len(f.flags.flags) != 0 || len(f.messages.inserted) != 0 {
			t.Errorf("verdict %+v persisted something", verdict)
		}
	}
}

func TestFlagInsertFailureKeepsAdviceBranch(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{
		IsRealConcern: true,
		ConcernLevel:  4,
		StudentAdvice: "advice text",
	})
	f.flags.insertErr = fmt.Errorf("connection refused")

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("I want to kill myself"))

	if result.Escalated {
		t.Error("escalated despite insert failure")
	}
	if len(f.alerts.alerts) != 0 {
		t.Error("alert dispatched without a persisted flag")
	}
	if !result.Advised || len(f.messages.inserted) != 1 {
		t.Error("advice branch did not survive flag insert failure")
	}
}

func TestAdviceInsertFailureKeepsEscalationBranch(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{
		IsRealConcern: true,
		ConcernLevel:  4,
		StudentAdvice: "advice text",
	})
	f.messages.insertErr = fmt.Errorf("connection refused")

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("I want to kill myself"))

	if !result.Escalated || len(f.flags.flags) != 1 {
		t.Error("escalation branch did not survive advice insert failure")
	}
	if result.Advised {
		t.Error("advised reported despite insert failure")
	}
}

func TestDispatchFailureIsNonFatal(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{
		IsRealConcern: true,
		ConcernLevel:  3,
		StudentAdvice: "advice text",
	})
	f.alerts.sendErr = fmt.Errorf("smtp down")

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("I want to kill myself"))

	if !result.Escalated || len(f.flags.flags) != 1 {
		t.Error("flag lost to a notification failure")
	}
	if !result.Advised {
		t.Error("advice lost to a notification failure")
	}
}

func TestProfileLookupFailureStillEscalates(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{
		IsRealConcern: true,
		ConcernLevel:  4,
		StudentAdvice: "advice text",
	})
	f.profiles.lookupErr = fmt.Errorf("users table unavailable")

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("I want to kill myself"))

	if !result.Escalated || len(f.flags.flags) != 1 {
		t.Fatal("escalation aborted by profile lookup failure")
	}
	if len(f.alerts.alerts) != 1 {
		t.Fatal("alert skipped despite available flag data")
	}
	a := f.alerts.alerts[0]
	if a.TeacherEmail != "" || a.StudentName != "" {
		t.Errorf("alert carries fields that could not be looked up: %+v", a)
	}
}

func TestContextFetchFailureStillVerifies(t *testing.T) {
	f := newFixture(t, models.ConcernVerdict{IsRealConcern: false})
	f.messages.fetchErr = fmt.Errorf("query timeout")

	result := f.orch.CheckMessageSafety(context.Background(), testRequest("I want to kill myself"))

	if f.verifier.calls != 1 {
		t.Error("verifier skipped when context fetch failed")
	}
	if !result.Verified {
		t.Error("result not marked verified")
	}
}

// TestEndToEndSelfHarmScenario drives the pipeline with the real verifier
// against a fake classification endpoint that reports level 4 and omits
// advice, so the fallback advice path is exercised end to end.
func TestEndToEndSelfHarmScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{
					"role":    "assistant",
					"content": `{"isRealConcern": true, "concernLevel": 4, "analysisExplanation": "Direct statement of suicidal intent."}`,
				}},
			},
		})
	}))
	defer srv.Close()

	helplines, err := safety.NewRegistry(safety.DefaultHelplineTable)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	realVerifier := verifier.NewVerifier(verifier.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Timeout: time.Second,
	}, helplines, zap.NewNop())

	f := newFixture(t, models.ConcernVerdict{})
	scanner, _ := safety.NewScanner(safety.DefaultKeywordTable)
	orch := NewOrchestrator(scanner, realVerifier, f.messages, f.flags, f.profiles, f.alerts, Config{
		EscalationThreshold: 3,
		AdviceThreshold:     2,
		ReviewBaseURL:       "https://app.example.com/teacher/flags",
	}, zap.NewNop())

	result := orch.CheckMessageSafety(context.Background(), testRequest("I want to kill myself"))

	if !result.Escalated || !result.Advised {
		t.Fatalf("result = %+v, want escalated and advised", result)
	}
	if len(f.flags.flags) != 1 {
		t.Fatalf("flag count = %d, want 1", len(f.flags.flags))
	}
	flag := f.flags.flags[0]
	if flag.ConcernType != "self_harm" || flag.ConcernLevel != 4 || flag.Status != "pending" {
		t.Errorf("unexpected flag: %+v", flag)
	}
	if len(f.alerts.alerts) != 1 {
		t.Errorf("alert count = %d, want 1", len(f.alerts.alerts))
	}
	if len(f.messages.inserted) != 1 {
		t.Fatalf("advice message count = %d, want 1", len(f.messages.inserted))
	}
	advice := f.messages.inserted[0].content
	if !strings.Contains(advice, verifier.DisclosureSentence) {
		t.Error("advice missing disclosure sentence")
	}
	if !strings.Contains(advice, "988 Suicide & Crisis Lifeline") {
		t.Error("advice missing helpline from the resolved country table")
	}
}

func TestExcerptTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := excerpt(long)
	if len([]rune(got)) != excerptLimit+3 {
		t.Errorf("excerpt length = %d, want %d", len([]rune(got)), excerptLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("long excerpt not marked as truncated")
	}
	if excerpt("short") != "short" {
		t.Error("short content modified")
	}
}
