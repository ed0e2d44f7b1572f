package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/crm"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
)

// Event names carried in the "event" query parameter.
const (
	EventNewLead        = "new_lead"
	EventHotLead        = "hot_lead"
	EventUrgentFollowup = "urgent_followup"
	EventEnterpriseLead = "enterprise_lead"
	EventHighScoreLead  = "high_score_lead"
)

// Target is one configured webhook endpoint. An empty Events list
// subscribes the target to every event.
type Target struct {
	ID      string
	URL     string
	Headers map[string]string
	Events  map[string]bool
}

// Report is the outcome of one delivery attempt.
type Report struct {
	WebhookID string
	Event     string
	Err       error
}

// Dispatcher fires lead events at configured endpoints as GET requests
// with the lead's fields in the query string. Deliveries are fire and
// forget: a failed call is reported and never retried.
type Dispatcher struct {
	targets []Target
	client  *http.Client
}

func NewDispatcher(configs []config.WebhookConfig) *Dispatcher {
	targets := make([]Target, 0, len(configs))
	for _, wc := range configs {
		if !wc.Active || wc.URL == "" {
			continue
		}
		t := Target{ID: wc.ID, URL: wc.URL}

		if wc.Headers != "" {
			if err := json.Unmarshal([]byte(wc.Headers), &t.Headers); err != nil {
				slog.Warn("Ignoring malformed webhook headers", "webhook", wc.ID, "error", err)
			}
		}
		if len(wc.Events) > 0 {
			t.Events = make(map[string]bool, len(wc.Events))
			for _, e := range wc.Events {
				t.Events[e] = true
			}
		}
		targets = append(targets, t)
	}

	return &Dispatcher{
		targets: targets,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// EventsFor computes the events a lead triggers. Every lead fires
// new_lead; the rest depend on the analysis flags.
func EventsFor(l *lead.Lead) []string {
	events := []string{EventNewLead}
	if l.IsHotLead {
		events = append(events, EventHotLead)
	}
	if l.NeedsImmediateFollowup {
		events = append(events, EventUrgentFollowup)
	}
	if l.IsEnterprise {
		events = append(events, EventEnterpriseLead)
	}
	if l.Score >= analysis.HighScoreThreshold {
		events = append(events, EventHighScoreLead)
	}
	return events
}

// Dispatch delivers each triggered event to each subscribed target,
// sequentially, and returns one report per attempted call.
func (d *Dispatcher) Dispatch(ctx context.Context, l *lead.Lead) []Report {
	events := EventsFor(l)

	var reports []Report
	for _, target := range d.targets {
		for _, event := range events {
			if target.Events != nil && !target.Events[event] {
				continue
			}
			err := d.deliver(ctx, target, event, l)
			if err != nil {
				slog.Warn("Webhook delivery failed",
					"webhook", target.ID, "event", event, "lead", l.ID, "error", err)
			}
			reports = append(reports, Report{WebhookID: target.ID, Event: event, Err: err})
		}
	}
	return reports
}

func (d *Dispatcher) deliver(ctx context.Context, target Target, event string, l *lead.Lead) error {
	endpoint, err := url.Parse(target.URL)
	if err != nil {
		return errors.InvalidInput("invalid webhook url: " + target.URL)
	}

	q := endpoint.Query()
	q.Set("event", event)
	q.Set("timestamp", time.Now().UTC().Format(time.RFC3339))
	q.Set("id", l.ID)
	q.Set("phone", l.Phone)
	q.Set("name", l.Name)
	q.Set("email", l.Email)
	q.Set("company", l.Company)
	q.Set("product", l.Product)
	q.Set("topic", l.Topic)
	q.Set("score", fmt.Sprintf("%d", l.Score))
	q.Set("intent", l.Intent)
	q.Set("urgency", l.Urgency)
	q.Set("stage", l.Stage)
	q.Set("routing", l.Routing)
	q.Set("status", string(l.Status))
	q.Set("source", crm.SourceURL(l.ID))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	for name, value := range target.Headers {
		req.Header.Set(name, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.MapError(err), "webhook call")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return errors.MapHTTPStatus(resp.StatusCode, "")
	}
	return nil
}
