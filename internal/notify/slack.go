package notify

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
)

type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(cfg config.SlackNotifyConfig) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(cfg.BotToken),
		channel: cfg.Channel,
	}
}

func (n *SlackNotifier) Name() string {
	return "slack"
}

func (n *SlackNotifier) NotifyHotLead(ctx context.Context, l *lead.Lead) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(digest(l), false),
	)
	if err != nil {
		return errors.Wrap(errors.MapError(err), "slack post")
	}
	return nil
}
