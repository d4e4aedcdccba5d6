package attendance

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/campcheck/internal/domain/models"
)

type trackerFixture struct {
	registry *Registry
	tracker  *Tracker
	clock    time.Time
}

func newTrackerFixture(t *testing.T, names ...string) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		registry: newTestRegistry(),
		clock:    time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC),
	}
	for _, n := range names {
		mustRegister(t, f.registry, n, "Cabin 7", 12)
	}
	f.tracker = NewTracker(f.registry, TrackerOptions{})
	seq := 0
	f.tracker.newID = func() string {
		seq++
		return fmt.Sprintf("session-%d", seq)
	}
	f.tracker.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	return f
}

func kinds(outcomes []models.ScanOutcome) []models.OutcomeKind {
	out := make([]models.OutcomeKind, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Kind)
	}
	return out
}

func eventIDs(evs []models.ScanEvent) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.CamperID)
	}
	return out
}

func TestTracker_EndToEndExample(t *testing.T) {
	f := newTrackerFixture(t, "A", "B", "C")

	_, err := f.tracker.Start("Lake", "Jess")
	require.NoError(t, err)

	var outcomes []models.ScanOutcome
	for _, code := range []string{"C001", "C001", "unknown-code", "C002"} {
		o, err := f.tracker.RecordScan(code)
		require.NoError(t, err)
		outcomes = append(outcomes, o)
	}

	assert.Equal(t, []models.OutcomeKind{
		models.OutcomeAccepted, models.OutcomeDuplicate, models.OutcomeUnknown, models.OutcomeAccepted,
	}, kinds(outcomes))
	assert.Nil(t, outcomes[2].Camper)
	assert.Equal(t, "unknown-code", outcomes[2].Code)

	record, err := f.tracker.Close()
	require.NoError(t, err)

	assert.Equal(t, []string{"C001", "C002"}, eventIDs(record.Session.Events))
	assert.Equal(t, 2, record.Report.TotalScanned)
	assert.Equal(t, 3, record.Report.TotalCampers)
	assert.Equal(t, []string{"C003"}, ids(record.Report.MissingCampers))
	assert.Equal(t, 67, record.Report.PresentPercentage)
	assert.Equal(t, models.SessionClosed, record.Session.Status)
	require.NotNil(t, record.Session.EndedAt)
	assert.Equal(t, StateIdle, f.tracker.State())

	history := f.tracker.History()
	require.Len(t, history, 1)
	assert.Equal(t, "session-1", history[0].Session.ID)
}

func TestTracker_StartDefaultsAndState(t *testing.T) {
	f := newTrackerFixture(t)
	assert.Equal(t, StateIdle, f.tracker.State())

	s, err := f.tracker.Start("  ", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultLocation, s.Location)
	assert.Equal(t, DefaultOperator, s.Operator)
	assert.Equal(t, models.SessionOpen, s.Status)
	assert.Empty(t, s.Events)
	assert.Equal(t, StateOpen, f.tracker.State())
}

func TestTracker_StartWhileOpenConflicts(t *testing.T) {
	f := newTrackerFixture(t, "A", "B")

	first, err := f.tracker.Start("Lake", "Jess")
	require.NoError(t, err)
	_, err = f.tracker.RecordScan("C001")
	require.NoError(t, err)

	_, err = f.tracker.Start("Dock", "Sam")

	var cerr *ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, CodeActiveSessionExists, ErrorCode(err))
	active, err := f.tracker.Active()
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.Session.ID)
	assert.Equal(t, "Lake", active.Session.Location)
	assert.Equal(t, []string{"C001"}, eventIDs(active.Session.Events))
}

func TestTracker_OperationsRequireOpenSession(t *testing.T) {
	f := newTrackerFixture(t, "A")

	_, err := f.tracker.RecordScan("C001")
	assertStateError(t, err)

	_, err = f.tracker.Close()
	assertStateError(t, err)

	_, err = f.tracker.Cancel()
	assertStateError(t, err)

	_, err = f.tracker.Active()
	assertStateError(t, err)

	_, err = f.tracker.Missing()
	assertStateError(t, err)

	assert.Empty(t, f.tracker.History())
}

func assertStateError(t *testing.T, err error) {
	t.Helper()
	var serr *StateError
	require.True(t, errors.As(err, &serr), "expected StateError, got %v", err)
	assert.Equal(t, StateIdle, serr.State)
}

func TestTracker_DuplicateAddsOneEvent(t *testing.T) {
	f := newTrackerFixture(t, "A")
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)

	first, err := f.tracker.RecordScan("C001")
	require.NoError(t, err)
	second, err := f.tracker.RecordScan("C001")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeAccepted, first.Kind)
	assert.Equal(t, models.OutcomeDuplicate, second.Kind)
	require.NotNil(t, second.Camper)
	assert.Equal(t, "A", second.Camper.Name)

	active, err := f.tracker.Active()
	require.NoError(t, err)
	assert.Len(t, active.Session.Events, 1)
	assert.Equal(t, models.LiveCounts{Scanned: 1, Total: 1, Remaining: 0}, active.Counts)
}

func TestTracker_UnknownCodesNeverMutate(t *testing.T) {
	f := newTrackerFixture(t, "A", "B")
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)

	for _, code := range []string{"", "   ", "C999", "c001", "C001|A", "|A|Cabin 7|12|None", "C001|A|B|C|D|E", "X|||"} {
		o, err := f.tracker.RecordScan(code)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeUnknown, o.Kind, "code %q", code)
	}

	active, err := f.tracker.Active()
	require.NoError(t, err)
	assert.Empty(t, active.Session.Events)
}

func TestTracker_StructuredPayloadResolves(t *testing.T) {
	f := newTrackerFixture(t, "A", "B")
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)

	b, ok := f.registry.Find("C002")
	require.True(t, ok)

	o, err := f.tracker.RecordScan(models.EncodePayload(b))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, o.Kind)

	o, err = f.tracker.RecordScan("C002")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDuplicate, o.Kind)
}

func TestTracker_CancelLeavesNoHistory(t *testing.T) {
	f := newTrackerFixture(t, "A", "B")
	_, err := f.tracker.Start("Lake", "Jess")
	require.NoError(t, err)
	_, err = f.tracker.RecordScan("C001")
	require.NoError(t, err)

	cancelled, err := f.tracker.Cancel()
	require.NoError(t, err)

	assert.Equal(t, models.SessionCancelled, cancelled.Status)
	assert.Equal(t, StateIdle, f.tracker.State())
	assert.Empty(t, f.tracker.History())
	_, err = f.tracker.Record(cancelled.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	next, err := f.tracker.Start("Dock", "Sam")
	require.NoError(t, err)
	assert.Empty(t, next.Events)
	o, err := f.tracker.RecordScan("C001")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccepted, o.Kind, "a new session starts with a clean slate")
}

func TestTracker_RoundTripCounts(t *testing.T) {
	for _, tc := range []struct{ n, k int }{{1, 0}, {1, 1}, {5, 2}, {7, 7}, {9, 4}} {
		t.Run(fmt.Sprintf("%d_of_%d", tc.k, tc.n), func(t *testing.T) {
			names := make([]string, tc.n)
			for i := range names {
				names[i] = fmt.Sprintf("camper-%d", i)
			}
			f := newTrackerFixture(t, names...)
			_, err := f.tracker.Start("", "")
			require.NoError(t, err)

			for i := 0; i < tc.k; i++ {
				_, err := f.tracker.RecordScan(formatID(i + 1))
				require.NoError(t, err)
			}

			record, err := f.tracker.Close()
			require.NoError(t, err)
			assert.Equal(t, tc.k, record.Report.TotalScanned)
			assert.Len(t, record.Report.MissingCampers, tc.n-tc.k)
			assert.Equal(t, percentage(tc.k, tc.n), record.Report.PresentPercentage)
		})
	}
}

func TestTracker_CloseWithEmptyRegistry(t *testing.T) {
	f := newTrackerFixture(t)
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)

	record, err := f.tracker.Close()
	require.NoError(t, err)

	assert.Equal(t, 0, record.Report.PresentPercentage)
	assert.Empty(t, record.Report.MissingCampers)
}

func TestTracker_ReportUsesRosterAtClose(t *testing.T) {
	f := newTrackerFixture(t, "A")
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)
	_, err = f.tracker.RecordScan("C001")
	require.NoError(t, err)

	mustRegister(t, f.registry, "Late", "Cabin 7", 11)

	record, err := f.tracker.Close()
	require.NoError(t, err)
	assert.Equal(t, 2, record.Report.TotalCampers)
	assert.Equal(t, []string{"C002"}, ids(record.Report.MissingCampers))
	assert.Equal(t, 50, record.Report.PresentPercentage)
}

func TestTracker_SnapshotsAreReadOnly(t *testing.T) {
	f := newTrackerFixture(t, "A", "B")
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)
	_, err = f.tracker.RecordScan("C001")
	require.NoError(t, err)

	active, err := f.tracker.Active()
	require.NoError(t, err)
	active.Session.Events[0].CamperID = "C002"
	active.Session.Events = append(active.Session.Events, models.ScanEvent{CamperID: "C002"})

	record, err := f.tracker.Close()
	require.NoError(t, err)
	assert.Equal(t, []string{"C001"}, eventIDs(record.Session.Events))

	record.Report.MissingCampers[0].Name = "changed"
	stored, err := f.tracker.Record(record.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", stored.Report.MissingCampers[0].Name)
}

func TestTracker_MissingDuringSession(t *testing.T) {
	f := newTrackerFixture(t, "A", "B", "C")
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)
	_, err = f.tracker.RecordScan("C002")
	require.NoError(t, err)

	missing, err := f.tracker.Missing()
	require.NoError(t, err)
	assert.Equal(t, []string{"C001", "C003"}, ids(missing))
}

func TestTracker_HistoryAndRestore(t *testing.T) {
	f := newTrackerFixture(t, "A")
	for i := 0; i < 2; i++ {
		_, err := f.tracker.Start("", "")
		require.NoError(t, err)
		_, err = f.tracker.Close()
		require.NoError(t, err)
	}

	history := f.tracker.History()
	require.Len(t, history, 2)
	assert.Equal(t, "session-1", history[0].Session.ID)
	assert.Equal(t, "session-2", history[1].Session.ID)

	rec, err := f.tracker.Record("session-2")
	require.NoError(t, err)
	assert.Equal(t, "session-2", rec.Session.ID)

	restored := NewTracker(f.registry, TrackerOptions{})
	require.NoError(t, restored.RestoreHistory(history))
	assert.Len(t, restored.History(), 2)

	var cerr *ConflictError
	err = restored.RestoreHistory(history)
	assert.True(t, errors.As(err, &cerr))
	assert.Equal(t, CodeAlreadyRestored, ErrorCode(err))
}

func TestTracker_ConcurrentScansAreSerialized(t *testing.T) {
	names := make([]string, 50)
	for i := range names {
		names[i] = fmt.Sprintf("camper-%d", i)
	}
	f := newTrackerFixture(t, names...)
	f.tracker.now = time.Now
	_, err := f.tracker.Start("", "")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= len(names); i++ {
				o, err := f.tracker.RecordScan(formatID(i))
				if err != nil {
					t.Error(err)
					return
				}
				if o.Kind == models.OutcomeAccepted {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(names), accepted)
	record, err := f.tracker.Close()
	require.NoError(t, err)
	assert.Equal(t, 100, record.Report.PresentPercentage)
	assert.Len(t, record.Session.Events, len(names))
}
