package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/attendance"
	"github.com/mamadbah2/campcheck/internal/domain/models"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// HelpText lists the supported counselor commands.
const HelpText = `Camp check-in commands:
/start [location] - open a session
/scan <code> - record a camper id or badge code
/status - live counts
/missing - campers not scanned yet
/close - close and report
/cancel - discard the open session
/help - this message`

// Attendance is the subset of the check-in service driven by commands.
type Attendance interface {
	StartSession(location, operator string) (models.Session, error)
	RecordScan(ctx context.Context, code string) (models.ScanOutcome, error)
	ActiveSession() (models.ActiveSession, error)
	MissingCampers() ([]models.Camper, error)
	CloseSession(ctx context.Context) (models.SessionRecord, error)
	CancelSession() (models.Session, error)
}

// Formatter renders replies.
type Formatter interface {
	FormatSessionSummary(record models.SessionRecord) string
	FormatLiveStatus(active models.ActiveSession) string
	FormatMissing(campers []models.Camper) string
	FormatOutcome(outcome models.ScanOutcome) string
}

// Dispatcher executes parsed commands and returns the reply text.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	attendance Attendance
	formatter  Formatter
	logger     *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(attendance Attendance, formatter Formatter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		attendance: attendance,
		formatter:  formatter,
		logger:     logger,
	}
}

// HandleCommand runs cmd on behalf of sender. Domain errors are returned
// unchanged; ReplyForError turns the expected ones into operator text.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	switch cmd.Type {
	case models.CommandStart:
		session, err := s.attendance.StartSession(cmd.ArgString(), sender)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Session started at %s. Send /scan <code> for each camper.", session.Location), nil
	case models.CommandScan:
		if len(cmd.Args) == 0 {
			return "", ErrInvalidArguments
		}
		// Badge payloads carry spaces in names and groups.
		outcome, err := s.attendance.RecordScan(ctx, cmd.ArgString())
		if err != nil {
			return "", err
		}
		return s.formatter.FormatOutcome(outcome), nil
	case models.CommandStatus:
		active, err := s.attendance.ActiveSession()
		if err != nil {
			return "", err
		}
		return s.formatter.FormatLiveStatus(active), nil
	case models.CommandMissing:
		missing, err := s.attendance.MissingCampers()
		if err != nil {
			return "", err
		}
		return s.formatter.FormatMissing(missing), nil
	case models.CommandClose:
		record, err := s.attendance.CloseSession(ctx)
		if err != nil {
			return "", err
		}
		return s.formatter.FormatSessionSummary(record), nil
	case models.CommandCancel:
		session, err := s.attendance.CancelSession()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Session at %s cancelled. %d scans discarded.", session.Location, len(session.Events)), nil
	default:
		return HelpText, nil
	}
}

// ReplyForError maps an expected command failure to operator-facing text.
// It reports false for errors that should be treated as internal failures.
func ReplyForError(err error) (string, bool) {
	var (
		conflict *attendance.ConflictError
		state    *attendance.StateError
	)

	switch {
	case errors.Is(err, ErrInvalidArguments):
		return "Missing arguments.\n" + HelpText, true
	case errors.As(err, &conflict) && conflict.Code == attendance.CodeActiveSessionExists:
		return "A session is already open. Send /close or /cancel first.", true
	case errors.As(err, &state):
		return "No session is open. Send /start to begin.", true
	case errors.Is(err, attendance.ErrUnreadableCode):
		return "That code could not be read. Try again.", true
	default:
		return "", false
	}
}
