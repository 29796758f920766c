package verifier

import (
	"fmt"
	"strings"

	"safeguard/internal/models"
	"safeguard/internal/safety"
)

// DisclosureSentence must appear verbatim in every piece of advice shown to
// a student. The platform's safeguarding policy requires that students are
// never misled about who can read the conversation.
const DisclosureSentence = "Please remember that a trusted adult on this platform can see this conversation and wants to help keep you safe."

const systemInstruction = `You are a safeguarding reviewer for a chat platform used by school students. A keyword filter flagged the latest student message as a possible safety concern. Your job is to judge whether it reflects a real concern about the student's wellbeing and how severe it is.

Severity scale:
0 - no concern (joke, song lyric, homework quote, idiom)
1 - very mild, no action needed
2 - worth a gentle supportive reply
3 - genuine concern, a teacher should review it
4 - serious concern, prompt adult attention needed
5 - acute risk of harm

Respond with a single JSON object, no other text:
{
  "isRealConcern": boolean,
  "concernLevel": integer 0-5,
  "analysisExplanation": "one or two sentences for the reviewing teacher",
  "aiGeneratedAdvice": "supportive message to the student, required when isRealConcern is true and concernLevel is 2 or higher"
}

Rules for aiGeneratedAdvice:
- Warm, age-appropriate, non-clinical. Never diagnose.
- Include this sentence verbatim: "` + DisclosureSentence + `"
- Mention the helplines listed below, exactly as written.
- Short: a few sentences at most.`

// buildUserPrompt assembles the bounded user message: detected category,
// recent context, the flagged message, and a verbatim helpline block.
func buildUserPrompt(text, category string, turns []models.ChatTurn, countryCode string, entries []safety.HelplineEntry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Detected concern category: %s\n", category)
	fmt.Fprintf(&sb, "Student country: %s\n\n", countryCode)

	if len(turns) > 0 {
		sb.WriteString("Recent conversation (oldest first):\n")
		for _, t := range turns {
			role := "student"
			if t.Role == models.RoleBot {
				role = "chatbot"
			}
			fmt.Fprintf(&sb, "[%s]: %s\n", role, t.Content)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Flagged student message:\n%s\n\n", text)

	sb.WriteString("Helplines to reference verbatim:\n")
	sb.WriteString(formatHelplines(entries))

	return sb.String()
}

// formatHelplines renders at most two entries, one per line.
func formatHelplines(entries []safety.HelplineEntry) string {
	var sb strings.Builder
	for i, e := range entries {
		if i >= 2 {
			break
		}
		sb.WriteString("- " + e.Name)
		if e.Phone != "" {
			sb.WriteString(", call " + e.Phone)
		}
		if e.TextTo != "" {
			if e.TextMessage != "" {
				fmt.Fprintf(&sb, ", text %s to %s", e.TextMessage, e.TextTo)
			} else {
				sb.WriteString(", text " + e.TextTo)
			}
		}
		if e.Website != "" {
			sb.WriteString(", " + e.Website)
		}
		if e.ShortDescription != "" {
			sb.WriteString(" (" + e.ShortDescription + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// fallbackAdvice builds the deterministic advice used when the model omits
// mandatory advice or is unavailable entirely.
func fallbackAdvice(entries []safety.HelplineEntry) string {
	var sb strings.Builder
	sb.WriteString("I'm really glad you shared this, and I'm sorry things feel so hard right now. ")
	sb.WriteString(DisclosureSentence)
	sb.WriteString("\n\nYou can also reach out right now:\n")
	sb.WriteString(formatHelplines(entries))
	sb.WriteString("\nYou don't have to deal with this on your own.")
	return sb.String()
}
