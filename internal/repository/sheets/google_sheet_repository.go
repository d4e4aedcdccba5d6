package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/campcheck/internal/config"
	"github.com/mamadbah2/campcheck/internal/domain/models"
)

const (
	campersWriteRange  = "Campers!A:G"
	sessionsWriteRange = "Sessions!A:H"
	timestampLayout    = "2006-01-02 15:04:05"
)

// Repository appends raw rows to a spreadsheet.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// Exporter mirrors the roster and closed sessions as spreadsheet rows.
type Exporter struct {
	repo Repository
	loc  *time.Location
}

// NewExporter renders timestamps in loc.
func NewExporter(repo Repository, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{repo: repo, loc: loc}
}

// AppendCamper writes id, name, group, age, emergency contact, medical notes
// and registration time.
func (e *Exporter) AppendCamper(ctx context.Context, c models.Camper) error {
	return e.repo.WriteRow(ctx, campersWriteRange, camperRow(c, e.loc))
}

// AppendSession writes one summary row per closed session.
func (e *Exporter) AppendSession(ctx context.Context, rec models.SessionRecord) error {
	return e.repo.WriteRow(ctx, sessionsWriteRange, sessionRow(rec, e.loc))
}

func camperRow(c models.Camper, loc *time.Location) []interface{} {
	return []interface{}{
		c.ID,
		c.Name,
		c.Group,
		c.Age,
		c.EmergencyContact,
		c.MedicalNotes,
		c.RegisteredAt.In(loc).Format(timestampLayout),
	}
}

func sessionRow(rec models.SessionRecord, loc *time.Location) []interface{} {
	ended := ""
	if rec.Session.EndedAt != nil {
		ended = rec.Session.EndedAt.In(loc).Format(timestampLayout)
	}

	missing := make([]string, 0, len(rec.Report.MissingCampers))
	for _, c := range rec.Report.MissingCampers {
		missing = append(missing, c.ID)
	}

	return []interface{}{
		rec.Session.ID,
		rec.Session.StartedAt.In(loc).Format(timestampLayout),
		ended,
		rec.Session.Location,
		rec.Session.Operator,
		fmt.Sprintf("%d/%d", rec.Report.TotalScanned, rec.Report.TotalCampers),
		rec.Report.PresentPercentage,
		strings.Join(missing, ", "),
	}
}
