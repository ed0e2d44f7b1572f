package crm

import (
	"fmt"
	"strings"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
)

// RenderNotes produces the human-readable lead dump written into each
// destination's free-text field. Most destinations cannot hold 30+
// custom fields without configuration, so operators read this instead.
func RenderNotes(l *lead.Lead) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Lead %s (%s)\n", l.ID, l.Status)
	fmt.Fprintf(&b, "Score: %d | Intent: %s | Urgency: %s | Stage: %s | Routing: %s\n",
		l.Score, l.Intent, l.Urgency, l.Stage, l.Routing)
	fmt.Fprintf(&b, "Sentiment: %s | Trust: %s | Motivation: %s | Completeness: %d%%\n",
		l.Sentiment, l.Trust, l.Motivation, l.Completeness)

	flags := make([]string, 0, 4)
	if l.IsHotLead {
		flags = append(flags, "HOT")
	}
	if l.NeedsImmediateFollowup {
		flags = append(flags, "IMMEDIATE FOLLOWUP")
	}
	if l.IsEnterprise {
		flags = append(flags, "ENTERPRISE")
	}
	if l.IsPartner {
		flags = append(flags, "PARTNER")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "Flags: %s\n", strings.Join(flags, ", "))
	}

	b.WriteByte('\n')
	writeField(&b, "Name", l.Name)
	writeField(&b, "Company", l.Company)
	writeField(&b, "Region", l.Region)
	writeField(&b, "Phone", l.Phone)
	writeField(&b, "Email", l.Email)
	writeField(&b, "Product", l.Product)
	writeField(&b, "Topic", l.Topic)
	writeField(&b, "Use case", l.UseCase)
	writeField(&b, "Budget", l.Budget)
	writeField(&b, "Scale", l.Scale)

	writeList(&b, "Timeline", l.Timeline)
	writeList(&b, "Objections", l.Objections)
	writeList(&b, "Questions", l.Questions)
	writeList(&b, "Competitors", l.Competitors)

	if l.Summary != "" {
		fmt.Fprintf(&b, "\nSummary:\n%s\n", l.Summary)
	}

	fmt.Fprintf(&b, "\nConversation: %d messages (%d from prospect), session %s, duration %s\n",
		l.MessageCount, l.UserMessages, l.SessionID, l.Duration)
	fmt.Fprintf(&b, "Source: %s\n", SourceURL(l.ID))

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" || value == "unknown" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}
