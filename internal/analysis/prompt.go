package analysis

import (
	"fmt"
	"strings"
)

// Input carries everything the engine needs to analyze one session.
type Input struct {
	Phone      string
	Product    string
	SessionID  string
	Transcript string
}

const systemPrompt = `You are a senior sales-qualification analyst for a WhatsApp-based business.
You read raw chat transcripts between a prospect and the business and produce a structured
lead-intelligence record.

Qualification heuristics:
- Score 0-100. Start from engagement: a prospect who answers questions, shares context about
  their business and asks about pricing or onboarding scores high. One-word replies, spam or
  off-topic chatter score low.
- Score 70+ only when there is a concrete buying signal: budget mentioned, timeline mentioned,
  decision maker identified, or an explicit request for a quote/demo.
- intent: "high" when the prospect drives the conversation toward purchase, "medium" when they
  gather information, "low" when they are passive, "unknown" when the transcript is too thin.
- urgency: "immediate" only when the prospect states a deadline or asks to start now;
  otherwise "soon", "exploring" or "unknown".
- stage: "awareness", "consideration" or "decision" following the classic funnel; "unknown"
  when unclear.
- routing: "enterprise_sales" for companies with many seats/locations or procurement language,
  "smb_sales" for small businesses, "self_serve" for individuals, "partnership" for resellers
  and integrators, "support" for existing customers, otherwise "unknown".
- sentiment/trust/motivation: "positive", "neutral" or "negative" from the prospect's tone,
  confidence in the product, and energy to proceed.
- Extract entities conservatively. Use "unknown" for anything the transcript does not support.
  Never invent names, companies or budgets.

Respond with a single JSON object and nothing else. No prose, no markdown fences.`

const userPromptTemplate = `Analyze this WhatsApp conversation.

phone: %s
product: %s
session_id: %s

transcript:
---
%s
---

Return a JSON object with exactly these keys:
"name", "company", "region", "email", "phone" (strings; "unknown" when absent),
"topic", "use_case", "summary" (strings),
"timeline", "objections", "questions", "competitors" (arrays of strings, may be empty),
"budget", "scale" (strings; "unknown" when absent),
"score" (integer 0-100),
"intent", "urgency", "stage", "routing", "sentiment", "trust", "motivation" (strings from the
allowed values above).`

func buildUserPrompt(in Input) string {
	phone := orUnknown(in.Phone)
	product := orUnknown(in.Product)
	sessionID := orUnknown(in.SessionID)
	return fmt.Sprintf(userPromptTemplate, phone, product, sessionID, in.Transcript)
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}
