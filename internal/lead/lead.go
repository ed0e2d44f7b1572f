package lead

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/analysis"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/session"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// Lead is the durable record produced by the pipeline, one per harvested
// session. IDs are fresh ULIDs and never reused; re-harvesting a session
// whose transcript grew intentionally creates a new Lead.
type Lead struct {
	ID string `json:"id"`

	// Identity
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Region  string `json:"region"`

	// Conversation metadata
	Date         time.Time `json:"date"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Duration     string    `json:"duration"`
	MessageCount int       `json:"message_count"`
	UserMessages int       `json:"user_messages"`
	SessionID    string    `json:"session_id"`
	Product      string    `json:"product"`
	Conversation string    `json:"conversation"`

	// Derived intelligence
	Topic       string   `json:"topic"`
	UseCase     string   `json:"use_case"`
	Summary     string   `json:"summary"`
	Timeline    []string `json:"timeline"`
	Objections  []string `json:"objections"`
	Questions   []string `json:"questions"`
	Competitors []string `json:"competitors"`
	Budget      string   `json:"budget"`
	Scale       string   `json:"scale"`

	// Scoring
	Score                  int    `json:"score"`
	Intent                 string `json:"intent"`
	Urgency                string `json:"urgency"`
	Stage                  string `json:"stage"`
	Routing                string `json:"routing"`
	Sentiment              string `json:"sentiment"`
	Trust                  string `json:"trust"`
	Motivation             string `json:"motivation"`
	IsHotLead              bool   `json:"is_hot_lead"`
	NeedsImmediateFollowup bool   `json:"needs_immediate_followup"`
	IsEnterprise           bool   `json:"is_enterprise"`
	IsPartner              bool   `json:"is_partner"`
	Completeness           int    `json:"completeness"`

	// Lifecycle
	Status    Status    `json:"status"`
	SyncedTo  []string  `json:"synced_to"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewID() string {
	return ulid.Make().String()
}

// FromAnalysis assembles a Lead from a harvested session and its analysis
// result.
func FromAnalysis(sess *session.ChatSession, transcript string, res *analysis.Result) *Lead {
	now := time.Now().UTC()

	var start, end time.Time
	userMessages := 0
	for _, m := range sess.Messages {
		if !m.Timestamp.IsZero() {
			if start.IsZero() || m.Timestamp.Before(start) {
				start = m.Timestamp
			}
			if m.Timestamp.After(end) {
				end = m.Timestamp
			}
		}
		if m.Role == "user" {
			userMessages++
		}
	}

	duration := ""
	if !start.IsZero() && !end.IsZero() {
		duration = end.Sub(start).Round(time.Second).String()
	}

	l := &Lead{
		ID:           NewID(),
		Name:         res.Name,
		Phone:        sess.Metadata.Phone,
		Email:        sess.Metadata.Email,
		Company:      res.Company,
		Region:       res.Region,
		Date:         now,
		StartTime:    start,
		EndTime:      end,
		Duration:     duration,
		MessageCount: len(sess.Messages),
		UserMessages: userMessages,
		SessionID:    sess.Metadata.SessionID,
		Product:      sess.Metadata.Product,
		Conversation: transcript,

		Topic:       res.Topic,
		UseCase:     res.UseCase,
		Summary:     res.Summary,
		Timeline:    res.Timeline,
		Objections:  res.Objections,
		Questions:   res.Questions,
		Competitors: res.Competitors,
		Budget:      res.Budget,
		Scale:       res.Scale,

		Score:                  res.Score,
		Intent:                 res.Intent,
		Urgency:                res.Urgency,
		Stage:                  res.Stage,
		Routing:                res.Routing,
		Sentiment:              res.Sentiment,
		Trust:                  res.Trust,
		Motivation:             res.Motivation,
		IsHotLead:              res.IsHotLead,
		NeedsImmediateFollowup: res.NeedsImmediateFollowup,
		IsEnterprise:           res.IsEnterprise,
		IsPartner:              res.IsPartner,
		Completeness:           res.Completeness,

		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if l.Phone == "" {
		l.Phone = res.Phone
	}
	if l.Email == "" {
		l.Email = res.Email
	}
	if l.Name == "" {
		l.Name = sess.Metadata.Username
	}
	return l
}
