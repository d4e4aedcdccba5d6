package models

// OutboundMessageRequest represents requests to push a message to a counselor via the API.
type OutboundMessageRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// StartSessionRequest is the HTTP body for opening a scanning session.
type StartSessionRequest struct {
	Location string `json:"location"`
	Operator string `json:"operator"`
}

// ScanRequest is the HTTP body for a manually entered or pre-decoded code.
type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}
