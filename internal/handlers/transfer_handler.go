package handlers

import (
	"net/http"
	"strconv"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/dto"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TransferHandler transfer lifecycle endpoints
type TransferHandler struct {
	svc    *services.BridgeService
	logger *logrus.Logger
}

// NewTransferHandler create transfer handler
func NewTransferHandler(svc *services.BridgeService, logger *logrus.Logger) *TransferHandler {
	return &TransferHandler{svc: svc, logger: logger}
}

// CreateTransferHandler POST /api/transfers
func (h *TransferHandler) CreateTransferHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		badRequest(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	recipient, err := parseHexBytes("recipient", req.Recipient)
	if err != nil {
		badRequest(c, err)
		return
	}

	id, err := h.svc.CreateTransfer(c.Request.Context(), caller, bridge.TransferRequest{
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		Asset:            asset,
		Amount:           amount,
		Recipient:        recipient,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":     true,
		"transfer_id": id,
		"status":      bridge.StatusPending.String(),
	})
}

// CancelTransferHandler POST /api/transfers/:id/cancel
func (h *TransferHandler) CancelTransferHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	cancelled, err := h.svc.CancelTransfer(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     cancelled,
		"transfer_id": id,
		"status":      bridge.StatusCancelled.String(),
	})
}

// ConfirmTransferHandler POST /api/transfers/:id/confirm
func (h *TransferHandler) ConfirmTransferHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	var req dto.ConfirmTransferRequest
	// body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	proof, err := parseHexBytes("proof", req.Proof)
	if err != nil {
		badRequest(c, err)
		return
	}

	completed, err := h.svc.ConfirmTransfer(c.Request.Context(), caller, id, proof)
	if err != nil {
		respondError(c, err)
		return
	}
	status, _ := h.svc.Core().GetTransferStatus(id)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transfer_id": id,
		"completed":   completed,
		"status":      status.String(),
	})
}

// FailTransferHandler POST /api/transfers/:id/fail
func (h *TransferHandler) FailTransferHandler(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	var req dto.FailTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.MarkFailed(c.Request.Context(), caller, id, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transfer_id": id,
		"status":      bridge.StatusFailed.String(),
	})
}

// GetTransferHandler GET /api/transfers/:id
func (h *TransferHandler) GetTransferHandler(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	core := h.svc.Core()
	t, err := core.GetTransferDetails(id)
	if err != nil {
		respondError(c, err)
		return
	}

	validators := core.Confirmations(id)
	confirmations := make([]string, 0, len(validators))
	for _, v := range validators {
		confirmations = append(confirmations, v.Hex())
	}

	var reason string
	if t.Status == bridge.StatusFailed {
		// reason lives in the database only
		if r, err := h.svc.FailureReason(c.Request.Context(), id); err == nil {
			reason = r
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"transfer": dto.NewTransferView(t, confirmations, reason),
	})
}

// GetTransferStatusHandler GET /api/transfers/:id/status
func (h *TransferHandler) GetTransferStatusHandler(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	status, err := h.svc.Core().GetTransferStatus(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transfer_id": id,
		"status":      status.String(),
	})
}

// ListTransfersHandler GET /api/transfers
func (h *TransferHandler) ListTransfersHandler(c *gin.Context) {
	var filter repository.TransferFilter
	if v := c.Query("status"); v != "" {
		status, err := bridge.ParseStatus(v)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Status = status.String()
	}
	if v := c.Query("initiator"); v != "" {
		addr, err := parseAddress("initiator", v)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Initiator = models.AddressString(addr)
	}
	if v := c.Query("asset"); v != "" {
		addr, err := parseAddress("asset", v)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.Asset = models.AddressString(addr)
	}
	if c.Query("destination_chain") != "" {
		chainID, err := parseUintQuery(c, "destination_chain")
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.DestinationChain = chainID
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	transfers, total, err := h.svc.ListTransfers(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("❌ Failed to list transfers")
		respondError(c, err)
		return
	}
	if transfers == nil {
		transfers = []bridge.Transfer{}
	}

	c.JSON(http.StatusOK, dto.TransferListResponse{
		Success:   true,
		Transfers: transfers,
		Total:     total,
		Page:      filter.Page,
		PageSize:  filter.PageSize,
	})
}

// TransferHistoryHandler GET /api/transfers/:id/events
func (h *TransferHandler) TransferHistoryHandler(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}

	logs, err := h.svc.TransferHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transfer_id": id,
		"events":      eventViews(logs),
	})
}

// ListEventsHandler GET /api/events?name=&transfer_id=&page=&page_size=
func (h *TransferHandler) ListEventsHandler(c *gin.Context) {
	filter := repository.EventFilter{Name: c.Query("name")}
	if c.Query("transfer_id") != "" {
		id, err := parseUintQuery(c, "transfer_id")
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.TransferID = &id
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	logs, total, err := h.svc.ListEvents(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EventListResponse{
		Success:  true,
		Events:   eventViews(logs),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// ConfirmationsHandler GET /api/transfers/:id/confirmations
func (h *TransferHandler) ConfirmationsHandler(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.svc.Core().GetTransferStatus(id); err != nil {
		respondError(c, err)
		return
	}

	records, err := h.svc.ConfirmationRecords(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.ConfirmationView, 0, len(records))
	for _, r := range records {
		out = append(out, dto.ConfirmationView{
			Validator:   common.HexToAddress(r.Validator).Hex(),
			Proof:       r.Proof,
			ConfirmedAt: r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"transfer_id":   id,
		"required":      h.svc.Core().RequiredConfirmations(),
		"confirmations": out,
	})
}

// TransferStatsHandler GET /api/stats/transfers
func (h *TransferHandler) TransferStatsHandler(c *gin.Context) {
	counts, err := h.svc.TransferStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"counts":  counts,
		"pending": len(h.svc.Core().PendingTransfers()),
	})
}

func eventViews(logs []*models.EventLog) []dto.EventView {
	out := make([]dto.EventView, 0, len(logs))
	for _, l := range logs {
		out = append(out, dto.EventView{
			ID:        l.ID,
			Name:      l.Name,
			EmittedAt: l.CreatedAt,
			Data:      l.Payload,
		})
	}
	return out
}
