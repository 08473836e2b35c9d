package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medbill/ledger/internal/api/dto"
	"github.com/medbill/ledger/internal/config"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/logger"
	"github.com/medbill/ledger/internal/service"
	"github.com/medbill/ledger/internal/types"
)

type ChargesCronHandler struct {
	logger        *logger.Logger
	config        *config.Configuration
	chargeService service.RecurringChargeService
}

func NewChargesCronHandler(logger *logger.Logger, config *config.Configuration, chargeService service.RecurringChargeService) *ChargesCronHandler {
	return &ChargesCronHandler{
		logger:        logger,
		config:        config,
		chargeService: chargeService,
	}
}

// RunRecurringCharges bills every active stay for each day elapsed up to as_of.
// Safe to call repeatedly for the same day.
func (h *ChargesCronHandler) RunRecurringCharges(c *gin.Context) {
	var req dto.RunRecurringChargesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	asOf, err := req.ParseAsOf(h.config.Billing.Location())
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Infow("starting recurring charges cron job", "as_of", types.FormatDay(asOf))

	summary, err := h.chargeService.RunRecurringCharges(c.Request.Context(), asOf)
	if err != nil {
		h.logger.Errorw("recurring charges run failed", "error", err, "as_of", types.FormatDay(asOf))
		c.Error(err)
		return
	}

	if summary.HasFatal() {
		h.logger.Errorw("recurring charges run reported fatal failures",
			"run_id", summary.RunID,
			"failures", len(summary.Failures),
		)
	}

	c.JSON(http.StatusOK, summary)
}
