package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
)

const hubspotDestination = "hubspot"

// HubSpotAdapter syncs leads as HubSpot contacts. The lead's source URL
// is stored in the fluffy_source contact property and drives id-based
// dedup; email is the fallback identity.
type HubSpotAdapter struct {
	cfg    config.HubSpotConfig
	tokens token.Store
	client *http.Client
}

func NewHubSpotAdapter(cfg config.HubSpotConfig, tokens token.Store) *HubSpotAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultHubSpotBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = config.DefaultHubSpotToken
	}
	return &HubSpotAdapter{
		cfg:    cfg,
		tokens: tokens,
		client: newHTTPClient(),
	}
}

func (a *HubSpotAdapter) Name() string {
	return hubspotDestination
}

func (a *HubSpotAdapter) Sync(ctx context.Context, l *lead.Lead) (Result, error) {
	return withTokenRefresh(ctx,
		func(ctx context.Context) (Result, error) { return a.syncOnce(ctx, l) },
		a.refreshToken,
	)
}

func (a *HubSpotAdapter) syncOnce(ctx context.Context, l *lead.Lead) (Result, error) {
	rec, err := a.tokens.Get(ctx, hubspotDestination)
	if err != nil {
		return Result{}, err
	}

	// Id-based dedup first: the source property is the idempotency key.
	existing, err := a.searchContact(ctx, rec.AccessToken, "fluffy_source", SourceURL(l.ID))
	if err != nil {
		return Result{}, err
	}
	if existing != "" {
		return Result{Skipped: true, RemoteID: existing}, nil
	}

	properties := a.contactProperties(l)

	// Fallback dedup by email, then phone: update instead of creating a
	// duplicate. WhatsApp leads often carry a phone and no email.
	var fallbackID string
	if validEmail(l.Email) {
		fallbackID, err = a.searchContact(ctx, rec.AccessToken, "email", l.Email)
		if err != nil {
			return Result{}, err
		}
	}
	if fallbackID == "" && validPhone(l.Phone) {
		fallbackID, err = a.searchContact(ctx, rec.AccessToken, "phone", l.Phone)
		if err != nil {
			return Result{}, err
		}
	}
	if fallbackID != "" {
		if err := a.updateContact(ctx, rec.AccessToken, fallbackID, properties); err != nil {
			return Result{}, err
		}
		return Result{Synced: true, RemoteID: fallbackID}, nil
	}

	remoteID, err := a.createContact(ctx, rec.AccessToken, properties)
	if err != nil {
		return Result{}, err
	}
	return Result{Synced: true, RemoteID: remoteID}, nil
}

func (a *HubSpotAdapter) contactProperties(l *lead.Lead) map[string]string {
	name := strings.TrimSpace(l.Name)
	first, last := name, ""
	if i := strings.LastIndex(name, " "); i > 0 {
		first, last = name[:i], name[i+1:]
	}

	props := map[string]string{
		"firstname":      first,
		"lastname":       last,
		"email":          l.Email,
		"phone":          l.Phone,
		"company":        l.Company,
		"fluffy_source":  SourceURL(l.ID),
		"hs_lead_status": string(l.Status),
		"lifecyclestage": "lead",
		"fluffy_score":   fmt.Sprintf("%d", l.Score),
		"fluffy_intent":  l.Intent,
		"fluffy_urgency": l.Urgency,
		"fluffy_routing": l.Routing,
	}
	props["hs_content_membership_notes"] = RenderNotes(l)
	return props
}

type hubspotSearchResponse struct {
	Total   int `json:"total"`
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

func (a *HubSpotAdapter) searchContact(ctx context.Context, accessToken, property, value string) (string, error) {
	body := map[string]any{
		"filterGroups": []map[string]any{
			{"filters": []map[string]any{
				{"propertyName": property, "operator": "EQ", "value": value},
			}},
		},
		"limit": 1,
	}

	var resp hubspotSearchResponse
	if err := a.do(ctx, accessToken, http.MethodPost, "/crm/v3/objects/contacts/search", body, &resp); err != nil {
		return "", err
	}
	if resp.Total > 0 && len(resp.Results) > 0 {
		return resp.Results[0].ID, nil
	}
	return "", nil
}

func (a *HubSpotAdapter) createContact(ctx context.Context, accessToken string, properties map[string]string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := a.do(ctx, accessToken, http.MethodPost, "/crm/v3/objects/contacts",
		map[string]any{"properties": properties}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (a *HubSpotAdapter) updateContact(ctx context.Context, accessToken, contactID string, properties map[string]string) error {
	return a.do(ctx, accessToken, http.MethodPatch, "/crm/v3/objects/contacts/"+contactID,
		map[string]any{"properties": properties}, nil)
}

func (a *HubSpotAdapter) do(ctx context.Context, accessToken, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode hubspot request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build hubspot request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.MapError(err), "hubspot request")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if err := errors.MapHTTPStatus(resp.StatusCode, string(raw)); err != nil {
		return errors.Wrap(err, "hubspot "+method+" "+path)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, "decode hubspot response")
		}
	}
	return nil
}

func (a *HubSpotAdapter) refreshToken(ctx context.Context) error {
	rec, err := a.tokens.Get(ctx, hubspotDestination)
	if err != nil {
		return err
	}
	if rec.RefreshToken == "" {
		return errors.AuthExpired("no refresh token stored for hubspot")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {a.cfg.ClientID},
		"client_secret": {a.cfg.ClientSecret},
		"refresh_token": {rec.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build hubspot refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.MapError(err), "hubspot token refresh")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.AuthExpired(fmt.Sprintf("hubspot refresh returned %d", resp.StatusCode))
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errors.Wrap(err, "decode hubspot refresh response")
	}

	rec.AccessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		rec.RefreshToken = payload.RefreshToken
	}
	// Persist immediately so a crash mid-cycle does not lose the rotation.
	return a.tokens.Put(ctx, hubspotDestination, rec)
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	return email != "" && email != "unknown" && strings.Contains(email, "@")
}

func validPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	return phone != "" && phone != "unknown" && len(phone) >= 7
}
