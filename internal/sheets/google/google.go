// Package google writes the journal to a Google Sheets spreadsheet using
// service account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	applog "motolucro/internal/log"
	"motolucro/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	logger        *applog.Logger
}

var _ sheets.JournalWriter = (*Client)(nil)

// New creates a client authenticated with the configured service account.
// Extra options are applied after the credentials.
func New(ctx context.Context, cfg Config, logger *applog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	all := append([]goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *applog.Logger) *Client {
	name := strings.TrimSpace(cfg.SheetName)
	if name == "" {
		name = "Journal"
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     name,
		loc:           loc,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

// credentials resolves inline JSON, then the file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func credentials(cfg Config) ([]byte, error) {
	file := strings.TrimSpace(cfg.CredentialsFile)
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (c *Client) journalRange() string {
	return fmt.Sprintf("%s!A:I", c.sheetName)
}

// Append adds e as a new row after the last non-empty row.
func (c *Client) Append(ctx context.Context, e sheets.Entry) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if e.Transaction.ID == "" {
		return errors.New("journal entry without transaction id")
	}

	vr := &gsheet.ValueRange{Values: [][]any{sheets.Row(e, c.loc)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.journalRange(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.journalRange(), err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Journal row appended",
		applog.FieldAction, e.Action,
		applog.FieldTransactionID, e.Transaction.ID,
		"range", updated)
	return nil
}

// EnsureHeader writes the column names to row 1 when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:I1", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{sheets.Header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	c.logger.InfoContext(ctx, "Journal header written", "sheet", c.sheetName)
	return nil
}
