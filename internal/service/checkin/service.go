// Package checkin wires the attendance core to persistence, spreadsheet
// export, QR badges and operator notifications.
package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/attendance"
	"github.com/mamadbah2/campcheck/internal/domain/models"
	"github.com/mamadbah2/campcheck/pkg/badge"
	"github.com/mamadbah2/campcheck/pkg/qr"
)

// DefaultMaxImageBytes bounds uploaded scan frames.
const DefaultMaxImageBytes int64 = 5 << 20

// ErrImageTooLarge is returned when a scan frame exceeds the upload limit.
var ErrImageTooLarge = errors.New("image too large")

// Store persists campers and closed sessions.
type Store interface {
	SaveCamper(ctx context.Context, camper models.Camper) error
	ListCampers(ctx context.Context) ([]models.Camper, error)
	SaveSession(ctx context.Context, record models.SessionRecord) error
	ListSessions(ctx context.Context) ([]models.SessionRecord, error)
}

// Exporter mirrors registrations and closed sessions to a spreadsheet.
type Exporter interface {
	AppendCamper(ctx context.Context, camper models.Camper) error
	AppendSession(ctx context.Context, record models.SessionRecord) error
}

// Notifier pushes a text message to a phone number.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// SummaryFormatter renders a closed session for humans.
type SummaryFormatter interface {
	FormatSessionSummary(record models.SessionRecord) string
}

// Options tunes the check-in rules.
type Options struct {
	Ages            attendance.AgeRange
	DefaultLocation string
	DefaultOperator string
	DirectorNumber  string
	MaxImageBytes   int64
}

// Dependencies are the optional collaborators. Nil members are skipped.
type Dependencies struct {
	Store     Store
	Exporter  Exporter
	Notifier  Notifier
	Formatter SummaryFormatter
}

// Service is the single entry point used by HTTP handlers, the command
// dispatcher and the scheduler.
type Service struct {
	registry *attendance.Registry
	tracker  *attendance.Tracker
	queue    *attendance.ScanQueue
	encoder  *qr.Encoder
	decoder  *qr.Decoder

	deps   Dependencies
	opts   Options
	logger *zap.Logger
}

// NewService builds the attendance core and starts its scan queue.
func NewService(opts Options, deps Dependencies, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}

	registry := attendance.NewRegistry(opts.Ages)
	tracker := attendance.NewTracker(registry, attendance.TrackerOptions{
		DefaultLocation: opts.DefaultLocation,
		DefaultOperator: opts.DefaultOperator,
	})

	return &Service{
		registry: registry,
		tracker:  tracker,
		queue:    attendance.NewScanQueue(tracker, logger.Named("queue")),
		encoder:  qr.NewEncoder(),
		decoder:  qr.NewDecoder(),
		deps:     deps,
		opts:     opts,
		logger:   logger,
	}
}

// SetFormatter attaches the summary renderer used for director
// notifications. Call it before the service handles requests.
func (s *Service) SetFormatter(f SummaryFormatter) {
	s.deps.Formatter = f
}

// Restore loads campers and then closed sessions from the store.
func (s *Service) Restore(ctx context.Context) error {
	if s.deps.Store == nil {
		return nil
	}

	campers, err := s.deps.Store.ListCampers(ctx)
	if err != nil {
		return fmt.Errorf("load campers: %w", err)
	}
	if err := s.registry.Restore(campers); err != nil {
		return fmt.Errorf("restore campers: %w", err)
	}

	records, err := s.deps.Store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	if err := s.tracker.RestoreHistory(records); err != nil {
		return fmt.Errorf("restore sessions: %w", err)
	}

	s.logger.Info("state restored", zap.Int("campers", len(campers)), zap.Int("sessions", len(records)))
	return nil
}

// RegisterCamper validates and stores a new camper.
func (s *Service) RegisterCamper(ctx context.Context, in models.RegistrationInput) (models.Camper, error) {
	camper, err := s.registry.Register(in)
	if err != nil {
		return models.Camper{}, err
	}
	s.logger.Info("camper registered", zap.String("camper_id", camper.ID), zap.String("group", camper.Group))

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveCamper(ctx, camper); err != nil {
			s.logger.Error("persist camper failed", zap.String("camper_id", camper.ID), zap.Error(err))
		}
	}
	if s.deps.Exporter != nil {
		if err := s.deps.Exporter.AppendCamper(ctx, camper); err != nil {
			s.logger.Error("export camper failed", zap.String("camper_id", camper.ID), zap.Error(err))
		}
	}
	return camper, nil
}

// GetCamper returns one camper or ErrNotFound.
func (s *Service) GetCamper(id string) (models.Camper, error) {
	camper, ok := s.registry.Find(id)
	if !ok {
		return models.Camper{}, attendance.ErrNotFound
	}
	return camper, nil
}

func (s *Service) ListCampers(filter models.CamperFilter) []models.Camper {
	return s.registry.List(filter)
}

func (s *Service) Groups() []string {
	return s.registry.AllGroups()
}

// CamperQRCode renders the camper's badge payload as a PNG.
func (s *Service) CamperQRCode(id string, size int) ([]byte, error) {
	camper, err := s.GetCamper(id)
	if err != nil {
		return nil, err
	}
	return s.encoder.PNG(models.EncodePayload(camper), size)
}

// CamperBadge renders a printable PDF badge holding the camper's QR code.
func (s *Service) CamperBadge(id string) ([]byte, error) {
	camper, err := s.GetCamper(id)
	if err != nil {
		return nil, err
	}
	png, err := s.encoder.PNG(models.EncodePayload(camper), qr.DefaultSize)
	if err != nil {
		return nil, err
	}
	return badge.PDF(camper.Name, png)
}

// ExportCampers returns the roster as indented JSON.
func (s *Service) ExportCampers() ([]byte, error) {
	data, err := json.MarshalIndent(s.registry.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal roster: %w", err)
	}
	return data, nil
}

// StartSession opens a scanning session.
func (s *Service) StartSession(location, operator string) (models.Session, error) {
	session, err := s.tracker.Start(location, operator)
	if err != nil {
		return models.Session{}, err
	}
	s.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("location", session.Location),
		zap.String("operator", session.Operator),
	)
	return session, nil
}

func (s *Service) ActiveSession() (models.ActiveSession, error) {
	return s.tracker.Active()
}

func (s *Service) MissingCampers() ([]models.Camper, error) {
	return s.tracker.Missing()
}

// RecordScan submits a decoded code through the scan queue. If ctx ends before
// the scan is applied it is withdrawn and nothing is recorded.
func (s *Service) RecordScan(ctx context.Context, code string) (models.ScanOutcome, error) {
	return s.await(s.queue.SubmitCode(ctx, code))
}

// RecordScanImage decodes a QR picture and records the code it carries. The
// decode runs concurrently with earlier scans; the result is applied in
// submission order.
func (s *Service) RecordScanImage(ctx context.Context, image io.Reader) (models.ScanOutcome, error) {
	data, err := io.ReadAll(io.LimitReader(image, s.opts.MaxImageBytes+1))
	if err != nil {
		return models.ScanOutcome{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.opts.MaxImageBytes {
		return models.ScanOutcome{}, ErrImageTooLarge
	}

	resolve := func(ctx context.Context) (string, error) {
		return s.decoder.Decode(ctx, data)
	}
	return s.await(s.queue.Submit(ctx, resolve))
}

// ConsumeCodes records a stream of codes from a scanner one at a time.
func (s *Service) ConsumeCodes(ctx context.Context, codes iter.Seq[string], onResult func(attendance.ScanResult)) error {
	return s.queue.Consume(ctx, codes, func(res attendance.ScanResult) {
		if res.Err == nil {
			s.logOutcome(res.Outcome)
		}
		if onResult != nil {
			onResult(res)
		}
	})
}

// CloseSession ends the session, persists the record and notifies the director.
func (s *Service) CloseSession(ctx context.Context) (models.SessionRecord, error) {
	record, err := s.tracker.Close()
	if err != nil {
		return models.SessionRecord{}, err
	}
	s.logger.Info("session closed",
		zap.String("session_id", record.Session.ID),
		zap.Int("scanned", record.Report.TotalScanned),
		zap.Int("total", record.Report.TotalCampers),
		zap.Int("present_pct", record.Report.PresentPercentage),
	)

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveSession(ctx, record); err != nil {
			s.logger.Error("persist session failed", zap.String("session_id", record.Session.ID), zap.Error(err))
		}
	}
	if s.deps.Exporter != nil {
		if err := s.deps.Exporter.AppendSession(ctx, record); err != nil {
			s.logger.Error("export session failed", zap.String("session_id", record.Session.ID), zap.Error(err))
		}
	}
	s.notifyDirector(ctx, record)

	return record, nil
}

// CancelSession discards the open session without recording it.
func (s *Service) CancelSession() (models.Session, error) {
	session, err := s.tracker.Cancel()
	if err != nil {
		return models.Session{}, err
	}
	s.logger.Info("session cancelled", zap.String("session_id", session.ID), zap.Int("events", len(session.Events)))
	return session, nil
}

// History returns closed sessions oldest first.
func (s *Service) History() []models.SessionRecord {
	return s.tracker.History()
}

func (s *Service) SessionRecord(id string) (models.SessionRecord, error) {
	return s.tracker.Record(id)
}

// Stop drains the scan queue.
func (s *Service) Stop() {
	s.queue.Stop()
}

func (s *Service) await(ticket *attendance.Ticket) (models.ScanOutcome, error) {
	res := ticket.Wait()
	if res.Err != nil {
		return models.ScanOutcome{}, res.Err
	}
	s.logOutcome(res.Outcome)
	return res.Outcome, nil
}

func (s *Service) logOutcome(outcome models.ScanOutcome) {
	fields := []zap.Field{zap.String("kind", string(outcome.Kind)), zap.String("code", outcome.Code)}
	if outcome.Camper != nil {
		fields = append(fields, zap.String("camper_id", outcome.Camper.ID))
	}
	if outcome.Kind == models.OutcomeAccepted {
		s.logger.Info("scan recorded", fields...)
		return
	}
	s.logger.Warn("scan rejected", fields...)
}

func (s *Service) notifyDirector(ctx context.Context, record models.SessionRecord) {
	if s.deps.Notifier == nil || s.deps.Formatter == nil || s.opts.DirectorNumber == "" {
		return
	}
	body := s.deps.Formatter.FormatSessionSummary(record)
	if err := s.deps.Notifier.SendText(ctx, s.opts.DirectorNumber, body); err != nil {
		s.logger.Error("notify director failed", zap.String("session_id", record.Session.ID), zap.Error(err))
	}
}
