package reply

import "strings"

// SystemPrompt fixes the mentor persona: brief, validating, and never
// diagnostic. The provider is also responsible for routing crisis intent
// to supportive language and helpline resources; DetectCrisis below backs
// that up locally so resources surface even when the provider is down.
const SystemPrompt = `You are a gentle recovery mentor inside a wellness app.
Rules you must always follow:
- Keep every reply under 120 words.
- Validate the person's feelings before anything else. Never diagnose,
  prescribe, or use clinical labels.
- Speak plainly and warmly, like a trusted friend who listens well.
- When it would genuinely help, you may start one of the app's guided
  activities by calling the matching tool (breathing exercise, journaling
  prompt, focus sprint, or short break) alongside a short spoken lead-in.
- If the person expresses intent to harm themselves or others, or appears
  to be in crisis, respond with supportive, non-judgmental language and
  share crisis-support resources: the 988 Suicide & Crisis Lifeline (call
  or text 988) and the Crisis Text Line (text HOME to 741741).`

const apologyFallback = `I'm having a little trouble gathering my thoughts ` +
	`right now. I'm sorry about that. Take a slow breath with me, and when ` +
	`you're ready, say that again - I'm still here with you.`

const crisisFallback = `I hear how much pain you're carrying right now, and ` +
	`I'm really glad you said it out loud. You deserve support from someone ` +
	`who can truly be there: please call or text 988 to reach the Suicide & ` +
	`Crisis Lifeline, or text HOME to 741741 for the Crisis Text Line. They ` +
	`are free, confidential, and available around the clock. You are not alone.`

var crisisTerms = []string{
	"kill myself",
	"suicide",
	"suicidal",
	"end my life",
	"want to die",
	"hurt myself",
	"harm myself",
	"self-harm",
	"self harm",
	"no reason to live",
	"better off dead",
}

// DetectCrisis is a conservative local keyword scan. It is not the primary
// crisis path (the provider's system prompt is), only the guard that keeps
// resources reachable when the provider fails.
func DetectCrisis(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range crisisTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// FallbackText is the canned reply used when the generation provider
// errors or times out. Crisis input always yields the hotline resources.
func FallbackText(utterance string) string {
	if DetectCrisis(utterance) {
		return crisisFallback
	}
	return apologyFallback
}
