package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
)

const zohoDestination = "zoho"

// ZohoAdapter syncs leads into the Zoho CRM Leads module. The stored
// token record carries the account's api domain and region, since Zoho
// routes both data and refresh calls per data center.
type ZohoAdapter struct {
	cfg    config.ZohoConfig
	tokens token.Store
	client *http.Client

	// apiDomainOverride is set by tests to point at a local server.
	apiDomainOverride string
}

func NewZohoAdapter(cfg config.ZohoConfig, tokens token.Store) *ZohoAdapter {
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = config.DefaultZohoAccounts
	}
	return &ZohoAdapter{
		cfg:    cfg,
		tokens: tokens,
		client: newHTTPClient(),
	}
}

func (a *ZohoAdapter) Name() string {
	return zohoDestination
}

func (a *ZohoAdapter) Sync(ctx context.Context, l *lead.Lead) (Result, error) {
	return withTokenRefresh(ctx,
		func(ctx context.Context) (Result, error) { return a.syncOnce(ctx, l) },
		a.refreshToken,
	)
}

func (a *ZohoAdapter) syncOnce(ctx context.Context, l *lead.Lead) (Result, error) {
	rec, err := a.tokens.Get(ctx, zohoDestination)
	if err != nil {
		return Result{}, err
	}
	apiDomain := a.apiDomain(rec)

	existing, err := a.searchLead(ctx, rec.AccessToken, apiDomain,
		fmt.Sprintf("(Lead_Source:equals:%s)", SourceURL(l.ID)))
	if err != nil {
		return Result{}, err
	}
	if existing != "" {
		return Result{Skipped: true, RemoteID: existing}, nil
	}

	record := a.leadRecord(l)

	var fallbackID string
	if validEmail(l.Email) {
		fallbackID, err = a.searchLead(ctx, rec.AccessToken, apiDomain,
			fmt.Sprintf("(Email:equals:%s)", l.Email))
		if err != nil {
			return Result{}, err
		}
	}
	if fallbackID == "" && validPhone(l.Phone) {
		fallbackID, err = a.searchLead(ctx, rec.AccessToken, apiDomain,
			fmt.Sprintf("(Phone:equals:%s)", l.Phone))
		if err != nil {
			return Result{}, err
		}
	}

	if fallbackID != "" {
		record["id"] = fallbackID
		if err := a.writeLead(ctx, rec.AccessToken, apiDomain, http.MethodPut, record); err != nil {
			return Result{}, err
		}
		return Result{Synced: true, RemoteID: fallbackID}, nil
	}

	remoteID, err := a.createLead(ctx, rec.AccessToken, apiDomain, record)
	if err != nil {
		return Result{}, err
	}
	return Result{Synced: true, RemoteID: remoteID}, nil
}

func (a *ZohoAdapter) apiDomain(rec *token.Record) string {
	if a.apiDomainOverride != "" {
		return a.apiDomainOverride
	}
	if rec.APIDomain != "" {
		return rec.APIDomain
	}
	return "https://www.zohoapis.com"
}

func (a *ZohoAdapter) leadRecord(l *lead.Lead) map[string]any {
	lastName := l.Name
	if lastName == "" || lastName == "unknown" {
		lastName = l.Phone
	}
	return map[string]any{
		"Last_Name":   lastName,
		"Company":     orPlaceholder(l.Company, "Unknown"),
		"Phone":       l.Phone,
		"Email":       l.Email,
		"Lead_Source": SourceURL(l.ID),
		"Lead_Status": string(l.Status),
		"Description": RenderNotes(l),
		"Rating":      zohoRating(l),
	}
}

func zohoRating(l *lead.Lead) string {
	switch {
	case l.IsHotLead:
		return "Acquired"
	case l.Score >= 40:
		return "Active"
	default:
		return "Cold"
	}
}

type zohoSearchResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *ZohoAdapter) searchLead(ctx context.Context, accessToken, apiDomain, criteria string) (string, error) {
	endpoint := apiDomain + "/crm/v2/Leads/search?criteria=" + url.QueryEscape(criteria)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "build zoho search request")
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+accessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.MapError(err), "zoho search")
	}
	defer resp.Body.Close()

	// Zoho returns 204 when the search matches nothing.
	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}

	raw, _ := io.ReadAll(resp.Body)
	if err := errors.MapHTTPStatus(resp.StatusCode, string(raw)); err != nil {
		return "", errors.Wrap(err, "zoho search")
	}

	var payload zohoSearchResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", errors.Wrap(err, "decode zoho search response")
	}
	if len(payload.Data) == 0 {
		return "", nil
	}
	return payload.Data[0].ID, nil
}

func (a *ZohoAdapter) createLead(ctx context.Context, accessToken, apiDomain string, record map[string]any) (string, error) {
	raw, err := json.Marshal(map[string]any{"data": []map[string]any{record}})
	if err != nil {
		return "", errors.Wrap(err, "encode zoho lead")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiDomain+"/crm/v2/Leads", bytes.NewReader(raw))
	if err != nil {
		return "", errors.Wrap(err, "build zoho create request")
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.MapError(err), "zoho create")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if err := errors.MapHTTPStatus(resp.StatusCode, string(body)); err != nil {
		return "", errors.Wrap(err, "zoho create")
	}

	var payload struct {
		Data []struct {
			Details struct {
				ID string `json:"id"`
			} `json:"details"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errors.Wrap(err, "decode zoho create response")
	}
	if len(payload.Data) == 0 {
		return "", errors.Internal("zoho create returned no record")
	}
	return payload.Data[0].Details.ID, nil
}

func (a *ZohoAdapter) writeLead(ctx context.Context, accessToken, apiDomain, method string, record map[string]any) error {
	raw, err := json.Marshal(map[string]any{"data": []map[string]any{record}})
	if err != nil {
		return errors.Wrap(err, "encode zoho lead")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiDomain+"/crm/v2/Leads", bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "build zoho update request")
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.MapError(err), "zoho update")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if err := errors.MapHTTPStatus(resp.StatusCode, string(body)); err != nil {
		return errors.Wrap(err, "zoho update")
	}
	return nil
}

func (a *ZohoAdapter) refreshToken(ctx context.Context) error {
	rec, err := a.tokens.Get(ctx, zohoDestination)
	if err != nil {
		return err
	}
	if rec.RefreshToken == "" {
		return errors.AuthExpired("no refresh token stored for zoho")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {a.cfg.ClientID},
		"client_secret": {a.cfg.ClientSecret},
		"refresh_token": {rec.RefreshToken},
	}

	endpoint := a.cfg.AccountsURL + "/oauth/v2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(form.Encode())))
	if err != nil {
		return errors.Wrap(err, "build zoho refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(errors.MapError(err), "zoho token refresh")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.AuthExpired(fmt.Sprintf("zoho refresh returned %d", resp.StatusCode))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		APIDomain   string `json:"api_domain"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errors.Wrap(err, "decode zoho refresh response")
	}
	if payload.AccessToken == "" {
		return errors.AuthExpired("zoho refresh returned empty access token")
	}

	rec.AccessToken = payload.AccessToken
	if payload.APIDomain != "" {
		rec.APIDomain = payload.APIDomain
	}
	return a.tokens.Put(ctx, zohoDestination, rec)
}

func orPlaceholder(v, placeholder string) string {
	if v == "" || v == "unknown" {
		return placeholder
	}
	return v
}
