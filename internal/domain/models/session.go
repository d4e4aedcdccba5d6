package models

import "time"

// SessionStatus is the lifecycle position of a scanning session.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionClosed    SessionStatus = "closed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is one bounded scanning period.
type Session struct {
	ID        string        `bson:"_id" json:"id"`
	StartedAt time.Time     `bson:"started_at" json:"started_at"`
	EndedAt   *time.Time    `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	Location  string        `bson:"location" json:"location"`
	Operator  string        `bson:"operator" json:"operator"`
	Status    SessionStatus `bson:"status" json:"status"`
	Events    []ScanEvent   `bson:"events" json:"events"`
}

// Clone returns a deep copy safe to hand to callers.
func (s Session) Clone() Session {
	out := s
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	out.Events = make([]ScanEvent, len(s.Events))
	copy(out.Events, s.Events)
	return out
}

// ScanEvent is one accepted scan of one camper within a session.
type ScanEvent struct {
	CamperID  string    `bson:"camper_id" json:"camper_id"`
	ScannedAt time.Time `bson:"scanned_at" json:"scanned_at"`
}

// OutcomeKind tags the result of a scan.
type OutcomeKind string

const (
	OutcomeAccepted  OutcomeKind = "accepted"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeUnknown   OutcomeKind = "unknown"
)

// ScanOutcome is the non-fatal result of recording a scan code.
// Camper is nil for unknown codes.
type ScanOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	Code   string      `json:"code"`
	Camper *Camper     `json:"camper,omitempty"`
	At     time.Time   `json:"at"`
}

// LiveCounts summarises progress of the open session.
type LiveCounts struct {
	Scanned   int `json:"scanned"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

// ActiveSession is a read-only view of the open session.
type ActiveSession struct {
	Session Session    `json:"session"`
	Counts  LiveCounts `json:"counts"`
}

// SessionReport is the immutable presence summary of a closed session.
type SessionReport struct {
	TotalCampers      int      `bson:"total_campers" json:"total_campers"`
	TotalScanned      int      `bson:"total_scanned" json:"total_scanned"`
	PresentIDs        []string `bson:"present_ids" json:"present_ids"`
	MissingCampers    []Camper `bson:"missing_campers" json:"missing_campers"`
	PresentPercentage int      `bson:"present_percentage" json:"present_percentage"`
}

// IsPresent reports whether the camper was scanned.
func (r SessionReport) IsPresent(camperID string) bool {
	for _, id := range r.PresentIDs {
		if id == camperID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to callers.
func (r SessionReport) Clone() SessionReport {
	out := r
	out.PresentIDs = make([]string, len(r.PresentIDs))
	copy(out.PresentIDs, r.PresentIDs)
	out.MissingCampers = make([]Camper, len(r.MissingCampers))
	copy(out.MissingCampers, r.MissingCampers)
	return out
}

// SessionRecord is a closed session retained in history with its report.
type SessionRecord struct {
	Session Session       `bson:"session" json:"session"`
	Report  SessionReport `bson:"report" json:"report"`
}

// Clone returns a deep copy safe to hand to callers.
func (r SessionRecord) Clone() SessionRecord {
	return SessionRecord{Session: r.Session.Clone(), Report: r.Report.Clone()}
}
