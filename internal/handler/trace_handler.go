package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agritrace-api/internal/models"
	"github.com/noah-isme/agritrace-api/internal/service"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
	"github.com/noah-isme/agritrace-api/pkg/qr"
	"github.com/noah-isme/agritrace-api/pkg/response"
)

// TraceHandler exposes the traceability ledger endpoints, including the
// public consumer scan view.
type TraceHandler struct {
	traces *service.TraceService
}

// NewTraceHandler constructs TraceHandler.
func NewTraceHandler(traces *service.TraceService) *TraceHandler {
	return &TraceHandler{traces: traces}
}

// TraceBatch godoc
// @Summary Trace a batch
// @Description Public reconstruction of a batch's chain of custody, no authentication required
// @Tags Trace
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trace/{batchId} [get]
func (h *TraceHandler) TraceBatch(c *gin.Context) {
	trace, err := h.traces.TraceBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trace, nil)
}

// History godoc
// @Summary Raw ledger history for a batch
// @Description Returns annotated ledger events, including entries recorded before batch registration
// @Tags Trace
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /trace/{batchId}/history [get]
func (h *TraceHandler) History(c *gin.Context) {
	journey, err := h.traces.History(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, journey, nil)
}

// QRCode godoc
// @Summary Batch QR code
// @Description PNG image encoding the batch id for label printing
// @Tags Trace
// @Produce png
// @Param batchId path string true "Batch ID"
// @Param size query int false "Image size in pixels"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /trace/{batchId}/qr [get]
func (h *TraceHandler) QRCode(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			size = parsed
		}
	}

	png, err := qr.PNG(c.Param("batchId"), size)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "could not render qr code"))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// Append godoc
// @Summary Append a ledger event
// @Description Admin-only direct write; the batch need not be registered yet
// @Tags Trace
// @Accept json
// @Produce json
// @Param payload body models.TraceAppendRequest true "Ledger event"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ledger/events [post]
func (h *TraceHandler) Append(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.TraceAppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ledger payload"))
		return
	}

	event, err := h.traces.Append(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, event, nil)
}
