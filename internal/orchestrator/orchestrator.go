package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safeguard/internal/alert"
	"safeguard/internal/models"
	"safeguard/internal/repository"
	"safeguard/internal/safety"
)

// contextLimit is how many prior messages are fetched for verification.
const contextLimit = 4

// verifierTurns is how many of those are actually sent to the model.
const verifierTurns = 3

const excerptLimit = 120

// Verifier scores a flagged message. Implementations never return an
// error; unavailability degrades to a fail-open verdict internally.
type Verifier interface {
	Verify(ctx context.Context, text, category string, turns []models.ChatTurn, countryCode string) models.ConcernVerdict
}

// Config holds the orchestrator thresholds and the review link base.
type Config struct {
	EscalationThreshold int    // flag + alert at this concern level and above
	AdviceThreshold     int    // advice message at this level and above
	ReviewBaseURL       string // flag review page, e.g. https://app.example.com/flags
}

// CheckRequest describes one inbound student message, invoked by the chat
// collaborator after the message is durably stored. Callers must invoke at
// most once per message; there is no deduplication guard here.
type CheckRequest struct {
	Content     string
	MessageID   string
	StudentID   string
	Room        models.Room
	CountryCode string
	SentAt      time.Time // when the message was stored; zero = now
}

// CheckResult summarizes what the pipeline did for one message. It exists
// for logging and the 202 response body; failures inside branches are not
// errors, they are absences.
type CheckResult struct {
	Scanned     bool   `json:"scanned"`
	ConcernType string `json:"concern_type,omitempty"`
	Verified    bool   `json:"verified"`
	FlagID      string `json:"flag_id,omitempty"`
	Escalated   bool   `json:"escalated"`
	Advised     bool   `json:"advised"`
}

// Orchestrator sequences scan, context fetch, verification, and the two
// independent side-effect branches. Every external call is isolated: the
// worst case for any failure is "logged and skipped", never an error back
// into the message-send path.
type Orchestrator struct {
	scanner     *safety.Scanner
	verifier    Verifier
	messageRepo repository.MessageRepository
	flagRepo    repository.FlagRepository
	profileRepo repository.ProfileRepository
	dispatcher  alert.Dispatcher
	cfg         Config
	logger      *zap.Logger
}

func NewOrchestrator(
	scanner *safety.Scanner,
	verifier Verifier,
	messageRepo repository.MessageRepository,
	flagRepo repository.FlagRepository,
	profileRepo repository.ProfileRepository,
	dispatcher alert.Dispatcher,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = 3
	}
	if cfg.AdviceThreshold <= 0 {
		cfg.AdviceThreshold = 2
	}
	return &Orchestrator{
		scanner:     scanner,
		verifier:    verifier,
		messageRepo: messageRepo,
		flagRepo:    flagRepo,
		profileRepo: profileRepo,
		dispatcher:  dispatcher,
		cfg:         cfg,
		logger:      logger,
	}
}

// CheckMessageSafety runs the full pipeline for one message. It never
// returns an error.
func (o *Orchestrator) CheckMessageSafety(ctx context.Context, req CheckRequest) CheckResult {
	result := CheckResult{Scanned: true}

	scan := o.scanner.Scan(req.Content)
	if !scan.HasConcern {
		return result
	}
	result.ConcernType = scan.Category

	o.logger.Info("Message flagged by keyword scanner",
		zap.String("message_id", req.MessageID),
		zap.String("concern_type", scan.Category))

	turns := o.fetchContext(ctx, req)

	verdict := o.verifier.Verify(ctx, req.Content, scan.Category, turns, req.CountryCode)
	result.Verified = true

	o.logger.Info("Concern verified",
		zap.String("message_id", req.MessageID),
		zap.Bool("is_real_concern", verdict.IsRealConcern),
		zap.Int("concern_level", verdict.ConcernLevel))

	// The two branches below are independent on purpose: a failed flag
	// insert must not cost the student their advice message, and vice versa.
	if verdict.IsRealConcern && verdict.ConcernLevel >= o.cfg.EscalationThreshold {
		result.FlagID, result.Escalated = o.escalate(ctx, req, scan.Category, verdict)
	}

	if verdict.IsRealConcern && verdict.ConcernLevel >= o.cfg.AdviceThreshold && verdict.StudentAdvice != "" {
		result.Advised = o.advise(ctx, req, scan.Category, verdict)
	}

	return result
}

// fetchContext loads the recent conversation window. A failure here is
// tolerable: verification proceeds with no context.
func (o *Orchestrator) fetchContext(ctx context.Context, req CheckRequest) []models.ChatTurn {
	before := req.SentAt
	if before.IsZero() {
		before = time.Now()
	}
	turns, err := o.messageRepo.FetchPriorMessages(ctx, req.Room.ID, req.StudentID, req.Room.ChatbotID, before, contextLimit)
	if err != nil {
		o.logger.Error("Failed to fetch prior messages, verifying without context",
			zap.String("message_id", req.MessageID),
			zap.Error(err))
		return nil
	}
	if len(turns) > verifierTurns {
		turns = turns[len(turns)-verifierTurns:]
	}
	return turns
}

// escalate inserts the flag and, on success, dispatches the teacher alert.
// Returns the flag ID and whether the flag was persisted.
func (o *Orchestrator) escalate(ctx context.Context, req CheckRequest, category string, verdict models.ConcernVerdict) (string, bool) {
	flag := &models.Flag{
		ID:           uuid.NewString(),
		MessageID:    req.MessageID,
		StudentID:    req.StudentID,
		TeacherID:    req.Room.TeacherID,
		RoomID:       req.Room.ID,
		ConcernType:  category,
		ConcernLevel: verdict.ConcernLevel,
		Explanation:  verdict.Explanation,
		Status:       models.FlagStatusPending,
	}

	if err := o.flagRepo.InsertFlag(ctx, flag); err != nil {
		o.logger.Error("Failed to insert flag, escalation branch aborted",
			zap.String("message_id", req.MessageID),
			zap.Error(err))
		return "", false
	}

	o.logger.Info("Flag created",
		zap.String("flag_id", flag.ID),
		zap.String("concern_type", category),
		zap.Int("concern_level", verdict.ConcernLevel))

	teacherAlert := alert.TeacherAlert{
		RoomName:     req.Room.Name,
		ConcernType:  category,
		ConcernLevel: verdict.ConcernLevel,
		Excerpt:      excerpt(req.Content),
		ReviewURL:    fmt.Sprintf("%s/%s", o.cfg.ReviewBaseURL, flag.ID),
	}

	if profile := o.lookupProfile(ctx, req.StudentID); profile != nil {
		teacherAlert.StudentName = profile.FullName
	}
	if profile := o.lookupProfile(ctx, req.Room.TeacherID); profile != nil {
		teacherAlert.TeacherEmail = profile.Email
	}

	if err := o.dispatcher.SendTeacherAlert(ctx, teacherAlert); err != nil {
		o.logger.Error("Failed to dispatch teacher alert",
			zap.String("flag_id", flag.ID),
			zap.Error(err))
	}

	return flag.ID, true
}

// advise persists the verdict's advice as a system chat message.
func (o *Orchestrator) advise(ctx context.Context, req CheckRequest, category string, verdict models.ConcernVerdict) bool {
	meta := models.SafetyMetadata{
		IsSystemSafetyResponse: true,
		OriginalConcernType:    category,
		OriginalConcernLevel:   verdict.ConcernLevel,
	}

	msgID, err := o.messageRepo.InsertSystemMessage(ctx, req.Room.ID, req.StudentID, req.Room.ChatbotID, verdict.StudentAdvice, meta)
	if err != nil {
		o.logger.Error("Failed to insert safety advice message",
			zap.String("message_id", req.MessageID),
			zap.Error(err))
		return false
	}

	o.logger.Info("Safety advice message inserted",
		zap.String("advice_message_id", msgID),
		zap.String("room_id", req.Room.ID))
	return true
}

// lookupProfile tolerates missing profiles and lookup failures; the caller
// proceeds with whatever fields it got.
func (o *Orchestrator) lookupProfile(ctx context.Context, userID string) *models.Profile {
	if userID == "" {
		return nil
	}
	profile, err := o.profileRepo.GetProfile(ctx, userID)
	if err != nil {
		o.logger.Warn("Profile lookup failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil
	}
	return profile
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLimit {
		return content
	}
	return string(runes[:excerptLimit]) + "..."
}
