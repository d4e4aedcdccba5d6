// Package attendance holds the camper registry, the scanning session tracker
// and the report builder. Nothing here performs I/O; collaborators such as
// scanners and stores live behind the interfaces declared by callers.
package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mamadbah2/campcheck/internal/domain/models"
)

const (
	idPrefix = "C"

	DefaultMinAge = 5
	DefaultMaxAge = 18
)

// AgeRange bounds the accepted camper age, inclusive.
type AgeRange struct {
	Min int
	Max int
}

// Registry is the authoritative set of registered campers.
type Registry struct {
	mu      sync.RWMutex
	campers []models.Camper
	index   map[string]int
	lastSeq int
	ages    AgeRange
	now     func() time.Time
}

// NewRegistry builds an empty registry. A zero AgeRange falls back to 5-18.
func NewRegistry(ages AgeRange) *Registry {
	if ages.Min <= 0 && ages.Max <= 0 {
		ages = AgeRange{Min: DefaultMinAge, Max: DefaultMaxAge}
	}
	return &Registry{
		index: make(map[string]int),
		ages:  ages,
		now:   time.Now,
	}
}

// Register validates the input and appends a new camper with a fresh id.
func (r *Registry) Register(in models.RegistrationInput) (models.Camper, error) {
	camper := models.Camper{
		Name:             strings.TrimSpace(in.Name),
		Group:            strings.TrimSpace(in.Group),
		Age:              in.Age,
		EmergencyContact: strings.TrimSpace(in.EmergencyContact),
		MedicalNotes:     strings.TrimSpace(in.MedicalNotes),
	}

	verr := &ValidationError{}
	if camper.Name == "" {
		verr.add("name", "is required")
	}
	if camper.Group == "" {
		verr.add("group", "is required")
	}
	switch {
	case camper.Age <= 0:
		verr.add("age", "must be a positive integer")
	case camper.Age < r.ages.Min || camper.Age > r.ages.Max:
		verr.add("age", fmt.Sprintf("must be between %d and %d", r.ages.Min, r.ages.Max))
	}
	if !verr.empty() {
		return models.Camper{}, verr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSeq++
	camper.ID = formatID(r.lastSeq)
	camper.RegisteredAt = r.now().UTC()

	r.index[camper.ID] = len(r.campers)
	r.campers = append(r.campers, camper)
	return camper, nil
}

// Find looks a camper up by id.
func (r *Registry) Find(id string) (models.Camper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return models.Camper{}, false
	}
	return r.campers[i], true
}

// List returns the campers matching the filter in registration order.
func (r *Registry) List(filter models.CamperFilter) []models.Camper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Camper, 0, len(r.campers))
	for _, c := range r.campers {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns a copy of every camper in registration order.
func (r *Registry) Snapshot() []models.Camper {
	return r.List(models.CamperFilter{})
}

// Len returns the number of registered campers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.campers)
}

// AllGroups returns the distinct group labels sorted ascending.
func (r *Registry) AllGroups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.campers))
	groups := make([]string, 0)
	for _, c := range r.campers {
		if _, ok := seen[c.Group]; ok {
			continue
		}
		seen[c.Group] = struct{}{}
		groups = append(groups, c.Group)
	}
	sort.Strings(groups)
	return groups
}

// Restore seeds an empty registry with previously persisted campers. The id
// counter resumes after the highest numeric id so ids are never reused.
func (r *Registry) Restore(campers []models.Camper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.campers) > 0 {
		return &ConflictError{Code: CodeAlreadyRestored, Reason: "registry already holds campers"}
	}

	index := make(map[string]int, len(campers))
	maxSeq := 0
	for i, c := range campers {
		if c.ID == "" {
			return &ValidationError{Problems: []FieldProblem{{Field: "id", Reason: "is required"}}}
		}
		if _, dup := index[c.ID]; dup {
			return &ValidationError{Problems: []FieldProblem{{Field: "id", Reason: "duplicate " + c.ID}}}
		}
		index[c.ID] = i
		if seq, ok := parseID(c.ID); ok && seq > maxSeq {
			maxSeq = seq
		}
	}

	r.campers = append([]models.Camper(nil), campers...)
	r.index = index
	if maxSeq > r.lastSeq {
		r.lastSeq = maxSeq
	}
	return nil
}

func formatID(seq int) string {
	return fmt.Sprintf("%s%03d", idPrefix, seq)
}

func parseID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, idPrefix)
	if !ok {
		return 0, false
	}
	seq, err := strconv.Atoi(rest)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}
