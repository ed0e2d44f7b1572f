package crm

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/config"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/lead"
	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/token"
)

const sheetsDestination = "sheets"

// The export sheet has a fixed A:O layout. Column A carries the lead's
// source URL and is the idempotency key.
const sheetRange = "!A:O"

// SheetsAdapter appends leads as rows to a Google spreadsheet. The
// spreadsheet id lives in the destination's token record, written by the
// OAuth connect flow.
type SheetsAdapter struct {
	cfg    config.SheetsConfig
	tokens token.Store

	// endpointOverride points the Sheets client and the token endpoint at
	// a local server in tests.
	endpointOverride string
	tokenURLOverride string
}

func NewSheetsAdapter(cfg config.SheetsConfig, tokens token.Store) *SheetsAdapter {
	if cfg.SheetName == "" {
		cfg.SheetName = config.DefaultSheetName
	}
	return &SheetsAdapter{cfg: cfg, tokens: tokens}
}

func (a *SheetsAdapter) Name() string {
	return sheetsDestination
}

func (a *SheetsAdapter) Sync(ctx context.Context, l *lead.Lead) (Result, error) {
	return withTokenRefresh(ctx,
		func(ctx context.Context) (Result, error) { return a.syncOnce(ctx, l) },
		a.refreshToken,
	)
}

func (a *SheetsAdapter) syncOnce(ctx context.Context, l *lead.Lead) (Result, error) {
	rec, err := a.tokens.Get(ctx, sheetsDestination)
	if err != nil {
		return Result{}, err
	}
	if rec.SpreadsheetID == "" {
		return Result{}, errors.InvalidInput("no spreadsheet configured for sheets destination")
	}

	svc, err := a.service(ctx, rec.AccessToken)
	if err != nil {
		return Result{}, err
	}

	readRange := a.cfg.SheetName + sheetRange
	values, err := svc.Spreadsheets.Values.Get(rec.SpreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return Result{}, mapSheetsError(err, "read export sheet")
	}

	source := SourceURL(l.ID)
	matchRow := -1
	for i, row := range values.Values {
		if len(row) == 0 {
			continue
		}
		cell := fmt.Sprint(row[0])
		if cell == source {
			return Result{Skipped: true, RemoteID: fmt.Sprintf("row-%d", i+1)}, nil
		}
		if matchRow < 0 && rowMatchesIdentity(row, l) {
			matchRow = i + 1 // sheet rows are 1-based
		}
	}

	rowValues := a.leadRow(l)

	if matchRow > 0 {
		updateRange := fmt.Sprintf("%s!A%d:O%d", a.cfg.SheetName, matchRow, matchRow)
		_, err = svc.Spreadsheets.Values.Update(rec.SpreadsheetID, updateRange, &sheets.ValueRange{
			Values: [][]interface{}{rowValues},
		}).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return Result{}, mapSheetsError(err, "update export row")
		}
		return Result{Synced: true, RemoteID: fmt.Sprintf("row-%d", matchRow)}, nil
	}

	_, err = svc.Spreadsheets.Values.Append(rec.SpreadsheetID, readRange, &sheets.ValueRange{
		Values: [][]interface{}{rowValues},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return Result{}, mapSheetsError(err, "append export row")
	}
	return Result{Synced: true}, nil
}

func (a *SheetsAdapter) service(ctx context.Context, accessToken string) (*sheets.Service, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}
	if a.endpointOverride != "" {
		opts = append(opts, option.WithEndpoint(a.endpointOverride))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create sheets client")
	}
	return svc, nil
}

func (a *SheetsAdapter) leadRow(l *lead.Lead) []interface{} {
	return []interface{}{
		SourceURL(l.ID),
		l.Date.Format("2006-01-02 15:04"),
		l.Name,
		l.Phone,
		l.Email,
		l.Company,
		l.Product,
		l.Topic,
		l.Score,
		l.Intent,
		l.Urgency,
		l.Stage,
		l.Routing,
		string(l.Status),
		RenderNotes(l),
	}
}

func rowMatchesIdentity(row []interface{}, l *lead.Lead) bool {
	phone, email := "", ""
	if len(row) > 3 {
		phone = fmt.Sprint(row[3])
	}
	if len(row) > 4 {
		email = fmt.Sprint(row[4])
	}
	if validEmail(l.Email) && strings.EqualFold(email, l.Email) {
		return true
	}
	if validPhone(l.Phone) && phone == l.Phone {
		return true
	}
	return false
}

func (a *SheetsAdapter) refreshToken(ctx context.Context) error {
	rec, err := a.tokens.Get(ctx, sheetsDestination)
	if err != nil {
		return err
	}
	if rec.RefreshToken == "" {
		return errors.AuthExpired("no refresh token stored for sheets")
	}

	conf := &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	if a.tokenURLOverride != "" {
		conf.Endpoint = oauth2.Endpoint{TokenURL: a.tokenURLOverride}
	}

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: rec.RefreshToken}).Token()
	if err != nil {
		return errors.Wrap(errors.MapError(err), "google token refresh")
	}

	rec.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
	}
	return a.tokens.Put(ctx, sheetsDestination, rec)
}

func mapSheetsError(err error, message string) error {
	if gerr, ok := err.(*googleapi.Error); ok {
		if mapped := errors.MapHTTPStatus(gerr.Code, gerr.Message); mapped != nil {
			return errors.Wrap(mapped, message)
		}
	}
	return errors.Wrap(errors.MapError(err), message)
}
