package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/campcheck/internal/attendance"
	"github.com/mamadbah2/campcheck/internal/domain/models"
	"github.com/mamadbah2/campcheck/internal/service/checkin"
	"github.com/mamadbah2/campcheck/internal/service/reporting"
)

func newDispatcher(t *testing.T) (*Service, *checkin.Service) {
	t.Helper()
	svc := checkin.NewService(checkin.Options{}, checkin.Dependencies{}, nil)
	t.Cleanup(svc.Stop)
	return NewService(svc, reporting.NewService(svc, time.UTC, nil), nil), svc
}

func run(t *testing.T, d *Service, text string) (string, error) {
	t.Helper()
	return d.HandleCommand(context.Background(), models.ParseCommand(text), "Counselor Sam")
}

func TestCommandSessionLifecycle(t *testing.T) {
	d, svc := newDispatcher(t)
	ctx := context.Background()
	alice, err := svc.RegisterCamper(ctx, models.RegistrationInput{Name: "Alice Smith", Group: "Cabin 7", Age: 12})
	require.NoError(t, err)
	_, err = svc.RegisterCamper(ctx, models.RegistrationInput{Name: "Bob", Group: "Cabin 3", Age: 10})
	require.NoError(t, err)

	reply, err := run(t, d, "/start Dining Hall")
	require.NoError(t, err)
	assert.Equal(t, "Session started at Dining Hall. Send /scan <code> for each camper.", reply)

	active, err := svc.ActiveSession()
	require.NoError(t, err)
	assert.Equal(t, "Counselor Sam", active.Session.Operator)

	reply, err = run(t, d, "/scan "+models.EncodePayload(alice))
	require.NoError(t, err)
	assert.Equal(t, "Checked in Alice Smith (C001, Cabin 7).", reply)

	reply, err = run(t, d, "/SCAN c001")
	require.NoError(t, err)
	assert.Equal(t, `Unknown code "c001".`, reply)

	reply, err = run(t, d, "/scan C001")
	require.NoError(t, err)
	assert.Contains(t, reply, "already scanned")

	reply, err = run(t, d, "/status")
	require.NoError(t, err)
	assert.Contains(t, reply, "1/2 scanned, 1 remaining")

	reply, err = run(t, d, "/missing")
	require.NoError(t, err)
	assert.Contains(t, reply, "- Bob (C002, Cabin 3)")

	reply, err = run(t, d, "/close")
	require.NoError(t, err)
	assert.Contains(t, reply, "Present 1/2 (50%)")
	assert.Len(t, svc.History(), 1)
}

func TestCommandCancel(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := run(t, d, "/start")
	require.NoError(t, err)

	reply, err := run(t, d, "/cancel")
	require.NoError(t, err)
	assert.Equal(t, "Session at Main Area cancelled. 0 scans discarded.", reply)
}

func TestCommandErrors(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := run(t, d, "/scan")
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = run(t, d, "/status")
	var serr *attendance.StateError
	assert.ErrorAs(t, err, &serr)

	_, err = run(t, d, "/start")
	require.NoError(t, err)
	_, err = run(t, d, "/start")
	var cerr *attendance.ConflictError
	assert.ErrorAs(t, err, &cerr)
}

func TestCommandHelp(t *testing.T) {
	d, _ := newDispatcher(t)

	for _, text := range []string{"/help", "hello there", ""} {
		reply, err := run(t, d, text)
		require.NoError(t, err)
		assert.Equal(t, HelpText, reply)
	}
}

func TestReplyForError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		contains string
		ok       bool
	}{
		{"invalid arguments", ErrInvalidArguments, "Missing arguments", true},
		{"conflict", &attendance.ConflictError{Code: attendance.CodeActiveSessionExists, Reason: "open"}, "already open", true},
		{"restore conflict", &attendance.ConflictError{Code: attendance.CodeAlreadyRestored, Reason: "restored"}, "", false},
		{"state", &attendance.StateError{Op: "close session", State: attendance.StateIdle}, "No session is open", true},
		{"unreadable", attendance.ErrUnreadableCode, "could not be read", true},
		{"internal", errors.New("boom"), "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reply, ok := ReplyForError(tc.err)
			assert.Equal(t, tc.ok, ok)
			assert.Contains(t, reply, tc.contains)
		})
	}
}
