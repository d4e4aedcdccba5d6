package reporting

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/domain/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	// maxListed caps how many names a single WhatsApp message carries.
	maxListed = 25
)

// HistorySource exposes closed sessions for digests.
type HistorySource interface {
	History() []models.SessionRecord
}

// Service renders attendance data as short text messages.
type Service struct {
	source HistorySource
	loc    *time.Location
	logger *zap.Logger
}

// NewService wires a new reporting service instance. Times are rendered in loc.
func NewService(source HistorySource, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{source: source, loc: loc, logger: logger}
}

// FormatSessionSummary describes a closed session and who was missing.
func (s *Service) FormatSessionSummary(record models.SessionRecord) string {
	var b strings.Builder

	session := record.Session
	report := record.Report

	fmt.Fprintf(&b, "Session closed: %s (%s)\n", session.Location, session.Operator)
	started := session.StartedAt.In(s.loc).Format(timeLayout)
	if session.EndedAt != nil {
		fmt.Fprintf(&b, "%s %s-%s\n", session.StartedAt.In(s.loc).Format(dateLayout), started, session.EndedAt.In(s.loc).Format(timeLayout))
	}
	fmt.Fprintf(&b, "Present %d/%d (%d%%)", report.TotalScanned, report.TotalCampers, report.PresentPercentage)

	if len(report.MissingCampers) == 0 {
		b.WriteString("\nEveryone accounted for.")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(s.FormatMissing(report.MissingCampers))
	return b.String()
}

// FormatLiveStatus reports the counters of the open session.
func (s *Service) FormatLiveStatus(active models.ActiveSession) string {
	session := active.Session
	counts := active.Counts

	return fmt.Sprintf("Session at %s (%s) since %s: %d/%d scanned, %d remaining.",
		session.Location,
		session.Operator,
		session.StartedAt.In(s.loc).Format(timeLayout),
		counts.Scanned,
		counts.Total,
		counts.Remaining,
	)
}

// FormatMissing lists campers not scanned yet.
func (s *Service) FormatMissing(campers []models.Camper) string {
	if len(campers) == 0 {
		return "Missing: none."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Missing (%d):", len(campers))
	for i, c := range campers {
		if i == maxListed {
			fmt.Fprintf(&b, "\n...and %d more", len(campers)-maxListed)
			break
		}
		fmt.Fprintf(&b, "\n- %s (%s, %s)", c.Name, c.ID, c.Group)
	}
	return b.String()
}

// FormatOutcome describes a single scan result.
func (s *Service) FormatOutcome(outcome models.ScanOutcome) string {
	switch {
	case outcome.Camper == nil:
		return fmt.Sprintf("Unknown code %q.", outcome.Code)
	case outcome.Kind == models.OutcomeAccepted:
		return fmt.Sprintf("Checked in %s (%s, %s).", outcome.Camper.Name, outcome.Camper.ID, outcome.Camper.Group)
	case outcome.Kind == models.OutcomeDuplicate:
		return fmt.Sprintf("%s was already scanned in this session.", outcome.Camper.Name)
	default:
		return fmt.Sprintf("Unknown code %q.", outcome.Code)
	}
}

// FormatStaleReminder nudges the director about a session left open.
func (s *Service) FormatStaleReminder(active models.ActiveSession, openFor time.Duration) string {
	return fmt.Sprintf("Reminder: the session at %s (%s) has been open for %s with %d/%d scanned. Close or cancel it when done.",
		active.Session.Location,
		active.Session.Operator,
		openFor.Round(time.Minute),
		active.Counts.Scanned,
		active.Counts.Total,
	)
}

// GenerateDailyDigest summarises every session closed on the calendar day of
// day, in the service's timezone.
func (s *Service) GenerateDailyDigest(ctx context.Context, day time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.source == nil {
		return "", fmt.Errorf("reporting source not configured")
	}

	local := day.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	var (
		lines []string
		sum   int
	)
	for _, rec := range s.source.History() {
		if rec.Session.EndedAt == nil {
			s.logger.Debug("skip session without end time", zap.String("session_id", rec.Session.ID))
			continue
		}
		ended := *rec.Session.EndedAt
		if ended.Before(start) || !ended.Before(end) {
			continue
		}

		sum += rec.Report.PresentPercentage
		lines = append(lines, fmt.Sprintf("- %s %s: %d/%d (%d%%)",
			ended.In(s.loc).Format(timeLayout),
			rec.Session.Location,
			rec.Report.TotalScanned,
			rec.Report.TotalCampers,
			rec.Report.PresentPercentage,
		))
	}

	if len(lines) == 0 {
		return fmt.Sprintf("Daily digest %s: no sessions closed.", start.Format(dateLayout)), nil
	}

	average := int(math.Round(float64(sum) / float64(len(lines))))
	header := fmt.Sprintf("Daily digest %s: %d sessions, average presence %d%%.", start.Format(dateLayout), len(lines), average)
	return header + "\n" + strings.Join(lines, "\n"), nil
}
