package notify

import (
	"strings"
	"testing"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
)

func TestDigestContents(t *testing.T) {
	l := &lead.Lead{
		ID:      "01TEST",
		Name:    "Budi",
		Company: "Warung Kopi",
		Phone:   "628123456789",
		Email:   "budi@example.com",
		Topic:   "subscription pricing",
		Summary: "Owner of a coffee chain asking for a quote.",
		Score:   82,
		Urgency: "immediate",
		Stage:   "decision",
		Routing: "enterprise_sales",
	}

	msg := digest(l)
	for _, want := range []string{
		"Budi",
		"Warung Kopi",
		"Score 82",
		"immediate",
		"628123456789",
		"budi@example.com",
		"subscription pricing",
		"https://app.fluffychats.com/leads/01TEST",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected digest to contain %q:\n%s", want, msg)
		}
	}
}

func TestDigestHidesUnknownFields(t *testing.T) {
	l := &lead.Lead{ID: "01TEST", Name: "unknown", Phone: "628123", Email: "unknown"}

	msg := digest(l)
	if strings.Contains(msg, "unknown") {
		t.Errorf("Expected unknown sentinels hidden:\n%s", msg)
	}
	if !strings.Contains(msg, "-") {
		t.Errorf("Expected dash placeholder for missing name:\n%s", msg)
	}
}

func TestFromConfigSkipsDisabledAndMisconfigured(t *testing.T) {
	notifiers := FromConfig(config.NotifyConfig{})
	if len(notifiers) != 0 {
		t.Fatalf("Expected no notifiers when all disabled, got %d", len(notifiers))
	}

	// Enabled but missing channel: skipped with a warning, not fatal.
	notifiers = FromConfig(config.NotifyConfig{
		Slack: config.SlackNotifyConfig{Enabled: true, BotToken: "xoxb-1"},
	})
	if len(notifiers) != 0 {
		t.Fatalf("Expected misconfigured slack to be skipped, got %d", len(notifiers))
	}

	notifiers = FromConfig(config.NotifyConfig{
		Slack: config.SlackNotifyConfig{Enabled: true, BotToken: "xoxb-1", Channel: "#leads"},
	})
	if len(notifiers) != 1 || notifiers[0].Name() != "slack" {
		t.Fatalf("Expected one slack notifier, got %v", notifiers)
	}
}
