package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/agritrace-api/internal/models"
	"github.com/noah-isme/agritrace-api/internal/service"
	appErrors "github.com/noah-isme/agritrace-api/pkg/errors"
	"github.com/noah-isme/agritrace-api/pkg/response"
)

// SupplyChainHandler exposes the delivery and sale transition endpoints.
type SupplyChainHandler struct {
	supply *service.SupplyChainService
}

// NewSupplyChainHandler constructs SupplyChainHandler.
func NewSupplyChainHandler(supply *service.SupplyChainService) *SupplyChainHandler {
	return &SupplyChainHandler{supply: supply}
}

// AcceptCrop godoc
// @Summary Accept a crop for distribution
// @Description Claims an available crop, creating a pending delivery and a procurement transaction
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Param payload body models.AcceptCropRequest true "Acceptance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /deliveries/accept-crop [post]
func (h *SupplyChainHandler) AcceptCrop(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AcceptCropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid acceptance payload"))
		return
	}

	delivery, err := h.supply.AcceptCrop(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, delivery, nil)
}

// StartDelivery godoc
// @Summary Start a pending delivery
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body models.StartDeliveryRequest true "Tracking payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /deliveries/{id}/start [post]
func (h *SupplyChainHandler) StartDelivery(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.StartDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tracking payload"))
		return
	}

	if err := h.supply.StartDelivery(c.Request.Context(), actor, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AcceptDelivery godoc
// @Summary Confirm receipt of a delivery
// @Description Moves both the delivery and the crop to delivered and records the Retail ledger event
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body models.AcceptDeliveryRequest true "Receipt payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /deliveries/{id}/accept [post]
func (h *SupplyChainHandler) AcceptDelivery(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AcceptDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid receipt payload"))
		return
	}

	if err := h.supply.AcceptDelivery(c.Request.Context(), actor, c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// RecordSale godoc
// @Summary Record a retail sale
// @Description Marks the crop as sold and appends the Sale ledger event
// @Tags SupplyChain
// @Accept json
// @Produce json
// @Param payload body models.RecordSaleRequest true "Sale payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sales [post]
func (h *SupplyChainHandler) RecordSale(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.RecordSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sale payload"))
		return
	}

	if err := h.supply.RecordSale(c.Request.Context(), actor, req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// GetDelivery godoc
// @Summary Get delivery detail
// @Tags SupplyChain
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Router /deliveries/{id} [get]
func (h *SupplyChainHandler) GetDelivery(c *gin.Context) {
	detail, err := h.supply.GetDelivery(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ListDeliveries godoc
// @Summary List deliveries
// @Tags SupplyChain
// @Produce json
// @Param distributorId query string false "Filter by distributor"
// @Param retailerId query string false "Filter by retailer"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /deliveries [get]
func (h *SupplyChainHandler) ListDeliveries(c *gin.Context) {
	var filter models.DeliveryFilter
	if distributorID := c.Query("distributorId"); distributorID != "" {
		filter.DistributorID = &distributorID
	}
	if retailerID := c.Query("retailerId"); retailerID != "" {
		filter.RetailerID = &retailerID
	}
	if status := c.Query("status"); status != "" {
		s := models.DeliveryStatus(status)
		filter.Status = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	deliveries, pagination, err := h.supply.ListDeliveries(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deliveries, pagination)
}

// ListTransactions godoc
// @Summary List trade transactions
// @Tags SupplyChain
// @Produce json
// @Param cropId query string false "Filter by crop"
// @Param userId query string false "Filter by participant"
// @Param type query string false "Filter by transaction type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /transactions [get]
func (h *SupplyChainHandler) ListTransactions(c *gin.Context) {
	var filter models.TransactionFilter
	filter.Type = c.Query("type")
	if cropID := c.Query("cropId"); cropID != "" {
		filter.CropID = &cropID
	}
	if userID := c.Query("userId"); userID != "" {
		filter.UserID = &userID
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	transactions, pagination, err := h.supply.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transactions, pagination)
}
