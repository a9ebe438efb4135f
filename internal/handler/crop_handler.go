package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agritrace-api/internal/models"
	"github.com/noah-isme/agritrace-api/internal/service"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
	"github.com/noah-isme/agritrace-api/pkg/response"
)

// CropHandler exposes crop registration and listing endpoints.
type CropHandler struct {
	crops *service.CropService
}

// NewCropHandler constructs CropHandler.
func NewCropHandler(crops *service.CropService) *CropHandler {
	return &CropHandler{crops: crops}
}

// Register godoc
// @Summary Register a harvested crop
// @Description Assigns a batch id and records the Harvest ledger event
// @Tags Crops
// @Accept json
// @Produce json
// @Param payload body models.CropCreateRequest true "Crop payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /crops [post]
func (h *CropHandler) Register(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CropCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid crop payload"))
		return
	}

	crop, err := h.crops.Register(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, crop, nil)
}

// List godoc
// @Summary List crops
// @Tags Crops
// @Produce json
// @Param farmerId query string false "Filter by farmer"
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by crop type"
// @Param search query string false "Search by name or batch id"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /crops [get]
func (h *CropHandler) List(c *gin.Context) {
	var filter models.CropFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Type = c.Query("type")
	if farmerID := c.Query("farmerId"); farmerID != "" {
		filter.FarmerID = &farmerID
	}
	if status := c.Query("status"); status != "" {
		s := models.CropStatus(status)
		filter.Status = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	crops, pagination, err := h.crops.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, crops, pagination)
}

// Get godoc
// @Summary Get crop detail
// @Tags Crops
// @Produce json
// @Param id path string true "Crop ID"
// @Success 200 {object} response.Envelope
// @Router /crops/{id} [get]
func (h *CropHandler) Get(c *gin.Context) {
	crop, err := h.crops.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, crop, nil)
}

// OverrideStatus godoc
// @Summary Override crop status
// @Description Owner-only manual correction, recorded in the ledger
// @Tags Crops
// @Accept json
// @Produce json
// @Param id path string true "Crop ID"
// @Param payload body models.CropOverrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /crops/{id}/status [patch]
func (h *CropHandler) OverrideStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CropOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override payload"))
		return
	}

	crop, err := h.crops.OverrideStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, crop, nil)
}
