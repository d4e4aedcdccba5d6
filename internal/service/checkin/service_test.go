package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/campcheck/internal/attendance"
	"github.com/mamadbah2/campcheck/internal/domain/models"
)

type fakeStore struct {
	mu       sync.Mutex
	campers  []models.Camper
	sessions []models.SessionRecord
	err      error
}

func (f *fakeStore) SaveCamper(_ context.Context, c models.Camper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.campers = append(f.campers, c)
	return nil
}

func (f *fakeStore) ListCampers(context.Context) ([]models.Camper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.campers), f.err
}

func (f *fakeStore) SaveSession(_ context.Context, r models.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sessions = append(f.sessions, r)
	return nil
}

func (f *fakeStore) ListSessions(context.Context) ([]models.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sessions), f.err
}

type fakeExporter struct {
	campers  []string
	sessions []string
}

func (f *fakeExporter) AppendCamper(_ context.Context, c models.Camper) error {
	f.campers = append(f.campers, c.ID)
	return nil
}

func (f *fakeExporter) AppendSession(_ context.Context, r models.SessionRecord) error {
	f.sessions = append(f.sessions, r.Session.ID)
	return nil
}

type sentMessage struct {
	to   string
	body string
}

type fakeNotifier struct {
	sent []sentMessage
}

func (f *fakeNotifier) SendText(_ context.Context, to, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

type stubFormatter struct{}

func (stubFormatter) FormatSessionSummary(r models.SessionRecord) string {
	return "summary " + r.Session.ID
}

func newTestService(t *testing.T, deps Dependencies) *Service {
	t.Helper()
	svc := NewService(Options{DirectorNumber: "221770000000"}, deps, nil)
	t.Cleanup(svc.Stop)
	return svc
}

func register(t *testing.T, svc *Service, name, group string, age int) models.Camper {
	t.Helper()
	c, err := svc.RegisterCamper(context.Background(), models.RegistrationInput{Name: name, Group: group, Age: age})
	require.NoError(t, err)
	return c
}

func TestRegisterPersistsAndExports(t *testing.T) {
	store := &fakeStore{}
	exporter := &fakeExporter{}
	svc := newTestService(t, Dependencies{Store: store, Exporter: exporter})

	c := register(t, svc, "Alice", "Cabin 7", 12)

	assert.Equal(t, "C001", c.ID)
	require.Len(t, store.campers, 1)
	assert.Equal(t, c, store.campers[0])
	assert.Equal(t, []string{"C001"}, exporter.campers)
}

func TestRegisterIgnoresStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("mongo down")}
	svc := newTestService(t, Dependencies{Store: store})

	c := register(t, svc, "Alice", "Cabin 7", 12)

	got, err := svc.GetCamper(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestRegisterValidationSkipsCollaborators(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, Dependencies{Store: store})

	_, err := svc.RegisterCamper(context.Background(), models.RegistrationInput{Name: " ", Group: "A", Age: 30})

	var verr *attendance.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, store.campers)
}

func TestGetCamperNotFound(t *testing.T) {
	svc := newTestService(t, Dependencies{})

	_, err := svc.GetCamper("C404")
	assert.ErrorIs(t, err, attendance.ErrNotFound)

	_, err = svc.CamperQRCode("C404", 0)
	assert.ErrorIs(t, err, attendance.ErrNotFound)
}

func TestExportCampers(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	register(t, svc, "Alice", "Cabin 7", 12)
	register(t, svc, "Bob", "Cabin 3", 10)

	data, err := svc.ExportCampers()
	require.NoError(t, err)

	var roster []models.Camper
	require.NoError(t, json.Unmarshal(data, &roster))
	require.Len(t, roster, 2)
	assert.Equal(t, "Alice", roster[0].Name)
	assert.Equal(t, "Bob", roster[1].Name)
}

func TestExportEmptyRoster(t *testing.T) {
	svc := newTestService(t, Dependencies{})

	data, err := svc.ExportCampers()
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestSessionFlowPersistsAndNotifies(t *testing.T) {
	store := &fakeStore{}
	exporter := &fakeExporter{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, Dependencies{Store: store, Exporter: exporter, Notifier: notifier, Formatter: stubFormatter{}})
	ctx := context.Background()

	alice := register(t, svc, "Alice", "Cabin 7", 12)
	bob := register(t, svc, "Bob", "Cabin 7", 11)
	register(t, svc, "Cara", "Cabin 3", 9)

	session, err := svc.StartSession("", "")
	require.NoError(t, err)
	assert.Equal(t, attendance.DefaultLocation, session.Location)

	out, err := svc.RecordScan(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, out.Kind)

	out, err = svc.RecordScan(ctx, models.EncodePayload(bob))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, out.Kind)

	out, err = svc.RecordScan(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, out.Kind)

	missing, err := svc.MissingCampers()
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "Cara", missing[0].Name)

	active, err := svc.ActiveSession()
	require.NoError(t, err)
	assert.Equal(t, models.LiveCounts{Scanned: 2, Total: 3, Remaining: 1}, active.Counts)

	record, err := svc.CloseSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, 67, record.Report.PresentPercentage)

	require.Len(t, store.sessions, 1)
	assert.Equal(t, session.ID, store.sessions[0].Session.ID)
	assert.Equal(t, []string{session.ID}, exporter.sessions)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, sentMessage{to: "221770000000", body: "summary " + session.ID}, notifier.sent[0])

	got, err := svc.SessionRecord(session.ID)
	require.NoError(t, err)
	assert.Equal(t, record, got)
	assert.Len(t, svc.History(), 1)
}

func TestCancelRecordsNothing(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, Dependencies{Store: store})
	c := register(t, svc, "Alice", "Cabin 7", 12)

	_, err := svc.StartSession("Lake", "Sam")
	require.NoError(t, err)
	_, err = svc.RecordScan(context.Background(), c.ID)
	require.NoError(t, err)

	cancelled, err := svc.CancelSession()
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, cancelled.Status)
	assert.Len(t, cancelled.Events, 1)

	assert.Empty(t, svc.History())
	assert.Empty(t, store.sessions)

	_, err = svc.RecordScan(context.Background(), c.ID)
	var serr *attendance.StateError
	assert.ErrorAs(t, err, &serr)
}

func TestRecordScanImage(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	c := register(t, svc, "Alice", "Cabin 7", 12)

	png, err := svc.CamperQRCode(c.ID, 0)
	require.NoError(t, err)

	_, err = svc.StartSession("Dining Hall", "Sam")
	require.NoError(t, err)

	out, err := svc.RecordScanImage(context.Background(), bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, out.Kind)
	require.NotNil(t, out.Camper)
	assert.Equal(t, c.ID, out.Camper.ID)
}

func TestRecordScanImageUnreadable(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	register(t, svc, "Alice", "Cabin 7", 12)
	_, err := svc.StartSession("", "")
	require.NoError(t, err)

	_, err = svc.RecordScanImage(context.Background(), bytes.NewReader([]byte("not a picture")))
	assert.ErrorIs(t, err, attendance.ErrUnreadableCode)

	active, err := svc.ActiveSession()
	require.NoError(t, err)
	assert.Zero(t, active.Counts.Scanned)
}

func TestRecordScanImageTooLarge(t *testing.T) {
	svc := NewService(Options{MaxImageBytes: 8}, Dependencies{}, nil)
	t.Cleanup(svc.Stop)

	_, err := svc.RecordScanImage(context.Background(), bytes.NewReader(make([]byte, 9)))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestConsumeCodes(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	a := register(t, svc, "Alice", "Cabin 7", 12)
	b := register(t, svc, "Bob", "Cabin 7", 11)
	_, err := svc.StartSession("", "")
	require.NoError(t, err)

	var kinds []models.OutcomeKind
	err = svc.ConsumeCodes(context.Background(), slices.Values([]string{a.ID, "nobody", b.ID, a.ID}), func(res attendance.ScanResult) {
		require.NoError(t, res.Err)
		kinds = append(kinds, res.Outcome.Kind)
	})
	require.NoError(t, err)

	assert.Equal(t, []models.OutcomeKind{
		models.OutcomeAccepted,
		models.OutcomeUnknown,
		models.OutcomeAccepted,
		models.OutcomeDuplicate,
	}, kinds)
}

func TestRestore(t *testing.T) {
	ended := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{
		campers: []models.Camper{
			{ID: "C001", Name: "Alice", Group: "Cabin 7", Age: 12},
			{ID: "C004", Name: "Dan", Group: "Cabin 2", Age: 14},
		},
		sessions: []models.SessionRecord{{
			Session: models.Session{ID: "s-1", Status: models.SessionClosed, EndedAt: &ended},
			Report:  models.SessionReport{TotalCampers: 2, PresentIDs: []string{"C001"}},
		}},
	}
	svc := newTestService(t, Dependencies{Store: store})

	require.NoError(t, svc.Restore(context.Background()))

	assert.Len(t, svc.ListCampers(models.CamperFilter{}), 2)
	assert.Len(t, svc.History(), 1)

	next := register(t, svc, "Eve", "Cabin 2", 13)
	assert.Equal(t, "C005", next.ID)
}

func TestRestoreWithoutStore(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	assert.NoError(t, svc.Restore(context.Background()))
}

func TestRestoreFailure(t *testing.T) {
	svc := newTestService(t, Dependencies{Store: &fakeStore{err: errors.New("unreachable")}})
	assert.Error(t, svc.Restore(context.Background()))
}

func TestRecordScanWithdrawnOnCancel(t *testing.T) {
	svc := newTestService(t, Dependencies{})
	register(t, svc, "Alice", "Cabin 7", 12)
	_, err := svc.StartSession("Dining Hall", "Sam")
	require.NoError(t, err)

	release := make(chan struct{})
	slowFrame := svc.queue.Submit(context.Background(), func(context.Context) (string, error) {
		<-release
		return "", errors.New("camera closed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = svc.RecordScan(ctx, "C001")
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.ErrorIs(t, slowFrame.Wait().Err, attendance.ErrUnreadableCode)

	// Anything queued after the withdrawn scan has been applied, so the
	// worker has already passed over it.
	outcome, err := svc.RecordScan(context.Background(), "C999")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnknown, outcome.Kind)

	active, err := svc.ActiveSession()
	require.NoError(t, err)
	assert.Empty(t, active.Session.Events)
	assert.Equal(t, 0, active.Counts.Scanned)
}
