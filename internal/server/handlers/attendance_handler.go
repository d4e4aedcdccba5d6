package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/attendance"
	"github.com/mamadbah2/campcheck/internal/domain/models"
	"github.com/mamadbah2/campcheck/internal/service/checkin"
)

const (
	codeInvalidRequest = "invalid_request"
	codeImageTooLarge  = "image_too_large"
	codeInternal       = "internal_error"
)

// CheckinService is the check-in surface exposed over HTTP.
type CheckinService interface {
	RegisterCamper(ctx context.Context, in models.RegistrationInput) (models.Camper, error)
	GetCamper(id string) (models.Camper, error)
	ListCampers(filter models.CamperFilter) []models.Camper
	Groups() []string
	CamperQRCode(id string, size int) ([]byte, error)
	CamperBadge(id string) ([]byte, error)
	ExportCampers() ([]byte, error)

	StartSession(location, operator string) (models.Session, error)
	ActiveSession() (models.ActiveSession, error)
	MissingCampers() ([]models.Camper, error)
	RecordScan(ctx context.Context, code string) (models.ScanOutcome, error)
	RecordScanImage(ctx context.Context, image io.Reader) (models.ScanOutcome, error)
	CloseSession(ctx context.Context) (models.SessionRecord, error)
	CancelSession() (models.Session, error)
	History() []models.SessionRecord
	SessionRecord(id string) (models.SessionRecord, error)
}

// AttendanceHandler serves the roster and session endpoints.
type AttendanceHandler struct {
	svc    CheckinService
	logger *zap.Logger
}

// NewAttendanceHandler constructs the HTTP handler adapter.
func NewAttendanceHandler(svc CheckinService, logger *zap.Logger) *AttendanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHandler{svc: svc, logger: logger}
}

type errorResponse struct {
	Code     string                    `json:"error"`
	Message  string                    `json:"message"`
	Problems []attendance.FieldProblem `json:"problems,omitempty"`
}

// RegisterCamper handles POST /campers.
func (h *AttendanceHandler) RegisterCamper(c *gin.Context) {
	var in models.RegistrationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	camper, err := h.svc.RegisterCamper(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, camper)
}

// ListCampers handles GET /campers?group=&search=.
func (h *AttendanceHandler) ListCampers(c *gin.Context) {
	var filter models.CamperFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.badRequest(c, "invalid query", err)
		return
	}
	c.JSON(http.StatusOK, h.svc.ListCampers(filter))
}

// GetCamper handles GET /campers/:id.
func (h *AttendanceHandler) GetCamper(c *gin.Context) {
	camper, err := h.svc.GetCamper(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, camper)
}

// CamperQRCode handles GET /campers/:id/qr?size=.
func (h *AttendanceHandler) CamperQRCode(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.badRequest(c, "size must be a positive integer", err)
			return
		}
		size = n
	}

	png, err := h.svc.CamperQRCode(c.Param("id"), size)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// CamperBadge handles GET /campers/:id/badge.pdf.
func (h *AttendanceHandler) CamperBadge(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.svc.CamperBadge(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-badge.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", doc)
}

// ExportCampers handles GET /campers/export.
func (h *AttendanceHandler) ExportCampers(c *gin.Context) {
	data, err := h.svc.ExportCampers()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="campers.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Groups handles GET /groups.
func (h *AttendanceHandler) Groups(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Groups())
}

// StartSession handles POST /sessions. An empty body uses the defaults.
func (h *AttendanceHandler) StartSession(c *gin.Context) {
	var req models.StartSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body", err)
			return
		}
	}

	session, err := h.svc.StartSession(req.Location, req.Operator)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ActiveSession handles GET /sessions/active.
func (h *AttendanceHandler) ActiveSession(c *gin.Context) {
	active, err := h.svc.ActiveSession()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

// MissingCampers handles GET /sessions/active/missing.
func (h *AttendanceHandler) MissingCampers(c *gin.Context) {
	missing, err := h.svc.MissingCampers()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, missing)
}

// RecordScan handles POST /sessions/active/scans. Duplicates and unknown
// codes are regular outcomes and return 200.
func (h *AttendanceHandler) RecordScan(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "code is required", err)
		return
	}

	outcome, err := h.svc.RecordScan(c.Request.Context(), req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// RecordScanImage handles POST /sessions/active/scans/image with a multipart "image" field.
func (h *AttendanceHandler) RecordScanImage(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		h.badRequest(c, "image file is required", err)
		return
	}

	file, err := header.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	outcome, err := h.svc.RecordScanImage(c.Request.Context(), file)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// CloseSession handles POST /sessions/active/close.
func (h *AttendanceHandler) CloseSession(c *gin.Context) {
	record, err := h.svc.CloseSession(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// CancelSession handles POST /sessions/active/cancel.
func (h *AttendanceHandler) CancelSession(c *gin.Context) {
	session, err := h.svc.CancelSession()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// History handles GET /sessions.
func (h *AttendanceHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.History())
}

// SessionRecord handles GET /sessions/:id.
func (h *AttendanceHandler) SessionRecord(c *gin.Context) {
	record, err := h.svc.SessionRecord(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *AttendanceHandler) badRequest(c *gin.Context, message string, err error) {
	h.logger.Debug("rejected request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, errorResponse{Code: codeInvalidRequest, Message: message})
}

func (h *AttendanceHandler) writeError(c *gin.Context, err error) {
	resp := errorResponse{Code: attendance.ErrorCode(err), Message: err.Error()}

	var status int
	switch resp.Code {
	case attendance.CodeValidationFailed:
		status = http.StatusBadRequest
		var verr *attendance.ValidationError
		if errors.As(err, &verr) {
			resp.Problems = verr.Problems
		}
	case attendance.CodeActiveSessionExists, attendance.CodeInvalidSessionState, attendance.CodeAlreadyRestored, attendance.CodeConflict:
		status = http.StatusConflict
	case attendance.CodeNotFound:
		status = http.StatusNotFound
	case attendance.CodeUnreadableCode:
		status = http.StatusUnprocessableEntity
	default:
		if errors.Is(err, checkin.ErrImageTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Code: codeImageTooLarge, Message: err.Error()})
			return
		}
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Code: codeInternal, Message: "internal error"})
		return
	}

	c.JSON(status, resp)
}
