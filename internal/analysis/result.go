package analysis

import (
	"math"
	"strings"
)

// Result is the structured lead intelligence extracted from one
// conversation. The raw fields come straight from the model response;
// the derived block is computed locally by Enrich.
type Result struct {
	// Identity
	Name    string `json:"name"`
	Company string `json:"company"`
	Region  string `json:"region"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`

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
	Score      int    `json:"score"`
	Intent     string `json:"intent"`
	Urgency    string `json:"urgency"`
	Stage      string `json:"stage"`
	Routing    string `json:"routing"`
	Sentiment  string `json:"sentiment"`
	Trust      string `json:"trust"`
	Motivation string `json:"motivation"`

	// Derived locally, never trusted from the model
	IsHotLead              bool `json:"is_hot_lead"`
	NeedsImmediateFollowup bool `json:"needs_immediate_followup"`
	IsEnterprise           bool `json:"is_enterprise"`
	IsPartner              bool `json:"is_partner"`
	HighScore              bool `json:"high_score"`
	Completeness           int  `json:"completeness"`
}

const (
	HotLeadScoreThreshold  = 70
	HighScoreThreshold     = 85
	UrgencyImmediate       = "immediate"
	RoutingEnterpriseSales = "enterprise_sales"
	RoutingPartnership     = "partnership"
	sentinelUnknown        = "unknown"
	requiredFieldCount     = 6
)

// Enrich computes the derived booleans and the completeness fraction from
// the raw model fields. It clamps the score into [0,100] first so a
// misbehaving model cannot produce out-of-range flags.
func (r *Result) Enrich() {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 100 {
		r.Score = 100
	}

	r.IsHotLead = r.Score >= HotLeadScoreThreshold
	r.HighScore = r.Score >= HighScoreThreshold
	r.NeedsImmediateFollowup = r.Urgency == UrgencyImmediate
	r.IsEnterprise = r.Routing == RoutingEnterpriseSales
	r.IsPartner = r.Routing == RoutingPartnership
	r.Completeness = r.computeCompleteness()
}

func (r *Result) computeCompleteness() int {
	present := 0
	if fieldPresent(r.Phone) {
		present++
	}
	if r.Score > 0 {
		present++
	}
	if fieldPresent(r.Topic) {
		present++
	}
	if fieldPresent(r.Intent) {
		present++
	}
	if fieldPresent(r.Stage) {
		present++
	}
	if fieldPresent(r.Routing) {
		present++
	}
	return int(math.Round(float64(present) / requiredFieldCount * 100))
}

func fieldPresent(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v != "" && v != sentinelUnknown
}
