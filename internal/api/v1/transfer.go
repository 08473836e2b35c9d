package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medbill/ledger/internal/api/dto"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/service"
)

type TransferHandler struct {
	service service.TransferService
	log     *logger.Logger
}

func NewTransferHandler(service service.TransferService, log *logger.Logger) *TransferHandler {
	return &TransferHandler{service: service, log: log}
}

// @Summary Transfer open items to a new visit
// @Description Called on admission; moves unpaid items of the previous visit's invoice to the new visit
// @Tags Transfers
// @Accept json
// @Produce json
// @Param transfer body dto.TransferInvoiceRequest true "Visits"
// @Success 200 {object} dto.TransferResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /transfers [post]
func (h *TransferHandler) TransferInvoice(c *gin.Context) {
	var req dto.TransferInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.TransferInvoice(c.Request.Context(), &req)
	if err != nil {
		h.log.Errorw("invoice transfer failed", "error", err, "old_visit_id", req.OldVisitID, "new_visit_id", req.NewVisitID)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
