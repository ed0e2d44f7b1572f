package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/crm"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
)

// Notifier pushes a short hot-lead digest to one chat destination.
type Notifier interface {
	Name() string
	NotifyHotLead(ctx context.Context, l *lead.Lead) error
}

// FromConfig builds the enabled notifiers. A misconfigured notifier is
// skipped with a warning rather than failing startup.
func FromConfig(cfg config.NotifyConfig) []Notifier {
	var notifiers []Notifier

	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" || cfg.Slack.Channel == "" {
			slog.Warn("Slack notifier enabled but bot_token or channel missing, skipping")
		} else {
			notifiers = append(notifiers, NewSlackNotifier(cfg.Slack))
		}
	}

	if cfg.Telegram.Enabled {
		tg, err := NewTelegramNotifier(cfg.Telegram)
		if err != nil {
			slog.Warn("Telegram notifier unavailable, skipping", "error", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	return notifiers
}

// digest renders the message body shared by all notifiers.
func digest(l *lead.Lead) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hot lead: %s", orDash(l.Name))
	if l.Company != "" && l.Company != "unknown" {
		fmt.Fprintf(&b, " (%s)", l.Company)
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "Score %d, %s urgency, stage %s, routing %s\n",
		l.Score, orDash(l.Urgency), orDash(l.Stage), orDash(l.Routing))
	fmt.Fprintf(&b, "Phone: %s", orDash(l.Phone))
	if l.Email != "" && l.Email != "unknown" {
		fmt.Fprintf(&b, " | Email: %s", l.Email)
	}
	b.WriteByte('\n')

	if l.Topic != "" && l.Topic != "unknown" {
		fmt.Fprintf(&b, "Topic: %s\n", l.Topic)
	}
	if l.Summary != "" {
		fmt.Fprintf(&b, "%s\n", l.Summary)
	}
	fmt.Fprintf(&b, "%s", crm.SourceURL(l.ID))

	return b.String()
}

func orDash(v string) string {
	if v == "" || v == "unknown" {
		return "-"
	}
	return v
}
