package verifier

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"safeguard/internal/models"
	"safeguard/internal/safety"
)

// failOpenLevel is the concern level assumed when verification cannot
// complete. A missed real crisis costs far more than a false escalation,
// so verifier failure always reads as an escalation-worthy concern.
const failOpenLevel = 3

// Config holds the classification call settings.
type Config struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible providers
	Model   string
	Timeout time.Duration

	// AdviceLevel is the minimum concern level at which student advice is
	// mandatory. It must match the orchestrator's advice threshold so that
	// every verdict the advise branch acts on carries advice.
	AdviceLevel int
}

// Verifier scores flagged messages with an external classification model.
type Verifier struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	adviceLevel int
	helplines   *safety.Registry
	logger      *zap.Logger
}

// NewVerifier creates a verifier backed by an OpenAI-compatible endpoint.
func NewVerifier(cfg Config, helplines *safety.Registry, logger *zap.Logger) *Verifier {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.AdviceLevel <= 0 {
		cfg.AdviceLevel = 2
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Verifier{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		adviceLevel: cfg.AdviceLevel,
		helplines:   helplines,
		logger:      logger,
	}
}

// rawVerdict mirrors the model's JSON response contract.
type rawVerdict struct {
	IsRealConcern       bool    `json:"isRealConcern"`
	ConcernLevel        float64 `json:"concernLevel"`
	AnalysisExplanation string  `json:"analysisExplanation"`
	AIGeneratedAdvice   string  `json:"aiGeneratedAdvice"`
}

// Verify scores a flagged message. It never returns an error: any failure
// of the external call degrades to the fail-open verdict so the pipeline
// always escalates rather than staying silent.
func (v *Verifier) Verify(ctx context.Context, text, category string, turns []models.ChatTurn, countryCode string) models.ConcernVerdict {
	code, entries := v.helplines.Resolve(countryCode)

	if len(turns) > 3 {
		turns = turns[len(turns)-3:]
	}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(text, category, turns, code, entries)},
		},
		Temperature: 0.2,
		MaxTokens:   400,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		v.logger.Error("Classification call failed, failing open",
			zap.String("category", category),
			zap.Error(err))
		return v.failOpen(fmt.Sprintf("Automated analysis failed (%v). Escalated as a precaution.", err))
	}

	if len(resp.Choices) == 0 {
		v.logger.Error("Classification call returned no choices, failing open",
			zap.String("category", category))
		return v.failOpen("Automated analysis returned an empty response. Escalated as a precaution.")
	}

	var raw rawVerdict
	if err := decodeLoose(resp.Choices[0].Message.Content, &raw); err != nil {
		v.logger.Error("Classification response undecodable, failing open",
			zap.String("category", category),
			zap.Error(err))
		return v.failOpen("Automated analysis returned an unreadable response. Escalated as a precaution.")
	}

	return v.enforceContract(raw, entries)
}

// enforceContract clamps the model output into a valid verdict and makes
// the advice and disclosure guarantees hold regardless of model behavior.
func (v *Verifier) enforceContract(raw rawVerdict, entries []safety.HelplineEntry) models.ConcernVerdict {
	level := int(math.Round(raw.ConcernLevel))
	if level < 0 {
		level = 0
	}
	if level > 5 {
		level = 5
	}

	verdict := models.ConcernVerdict{
		IsRealConcern: raw.IsRealConcern,
		ConcernLevel:  level,
		Explanation:   raw.AnalysisExplanation,
		StudentAdvice: strings.TrimSpace(raw.AIGeneratedAdvice),
	}

	if verdict.IsRealConcern && verdict.ConcernLevel >= v.adviceLevel {
		if verdict.StudentAdvice == "" {
			v.logger.Warn("Model omitted mandatory advice, using fallback",
				zap.Int("concern_level", verdict.ConcernLevel))
			verdict.StudentAdvice = fallbackAdvice(entries)
		} else if !strings.Contains(verdict.StudentAdvice, DisclosureSentence) {
			verdict.StudentAdvice = DisclosureSentence + "\n\n" + verdict.StudentAdvice
		}
	}

	return verdict
}

// failOpen is the verdict used whenever verification cannot complete.
func (v *Verifier) failOpen(explanation string) models.ConcernVerdict {
	_, entries := v.helplines.Resolve("")
	return models.ConcernVerdict{
		IsRealConcern: true,
		ConcernLevel:  failOpenLevel,
		Explanation:   explanation,
		StudentAdvice: fallbackAdvice(entries),
	}
}
