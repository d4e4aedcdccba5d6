package models

import (
	"strings"
	"time"
)

// Camper is a registered person tracked for attendance.
// Optional fields are empty strings when not provided.
type Camper struct {
	ID               string    `bson:"_id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Group            string    `bson:"group" json:"group"`
	Age              int       `bson:"age" json:"age"`
	EmergencyContact string    `bson:"emergency_contact,omitempty" json:"emergency_contact,omitempty"`
	MedicalNotes     string    `bson:"medical_notes,omitempty" json:"medical_notes,omitempty"`
	RegisteredAt     time.Time `bson:"registered_at" json:"registered_at"`
}

// RegistrationInput carries the caller supplied fields for a new camper.
type RegistrationInput struct {
	Name             string `json:"name"`
	Group            string `json:"group"`
	Age              int    `json:"age"`
	EmergencyContact string `json:"emergency_contact"`
	MedicalNotes     string `json:"medical_notes"`
}

// CamperFilter narrows a roster listing. Zero value matches everyone.
type CamperFilter struct {
	Group  string `form:"group"`
	Search string `form:"search"`
}

// Matches reports whether the camper satisfies the filter.
func (f CamperFilter) Matches(c Camper) bool {
	if f.Group != "" && c.Group != f.Group {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), term) ||
		strings.Contains(strings.ToLower(c.ID), term)
}
