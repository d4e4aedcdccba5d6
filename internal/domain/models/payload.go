package models

import (
	"strconv"
	"strings"
)

const (
	payloadSeparator = "|"
	payloadFields    = 5
	noMedicalNotes   = "None"
)

// EncodePayload renders the scannable badge token for a camper:
// id|name|group|age|medicalNotesOrNone. Separators inside free-text
// fields are replaced so the id always stays the first field.
func EncodePayload(c Camper) string {
	notes := sanitizeField(c.MedicalNotes)
	if notes == "" {
		notes = noMedicalNotes
	}
	return strings.Join([]string{
		c.ID,
		sanitizeField(c.Name),
		sanitizeField(c.Group),
		strconv.Itoa(c.Age),
		notes,
	}, payloadSeparator)
}

// ParsePayloadID extracts the camper id from a scanned code. Codes without a
// separator are treated as raw ids. Structured tokens must carry exactly five
// fields with a non-empty id; anything else is reported as malformed.
func ParsePayloadID(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	if !strings.Contains(code, payloadSeparator) {
		return code, true
	}

	fields := strings.Split(code, payloadSeparator)
	if len(fields) != payloadFields {
		return "", false
	}
	id := strings.TrimSpace(fields[0])
	if id == "" {
		return "", false
	}
	return id, true
}

func sanitizeField(value string) string {
	value = strings.ReplaceAll(value, payloadSeparator, "/")
	return strings.TrimSpace(value)
}
