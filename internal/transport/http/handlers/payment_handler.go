package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/domain/enums"
	paymentsvc "github.com/GK-FY/bulk/internal/services/payments"
	"github.com/GK-FY/bulk/internal/transport/http/dto"
	httperrors "github.com/GK-FY/bulk/internal/transport/http/errors"
)

type CallbackSettler interface {
	HandleCallback(ctx context.Context, cb paymentsvc.Callback) (paymentsvc.Outcome, error)
}

type PaymentHandler struct {
	settler CallbackSettler
	logger  *zap.Logger
}

func NewPaymentHandler(settler CallbackSettler, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{settler: settler, logger: logger}
}

// Callback is the push path of settlement. Every well-formed request is
// acknowledged with 200 so the gateway stops retrying, including checkouts
// that were already settled by the poll.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req dto.PaymentCallbackRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		httperrors.Write(w, http.StatusBadRequest, dto.PaymentCallbackResponse{
			Success: false,
			Message: "invalid json body",
		})
		return
	}
	if strings.TrimSpace(req.CheckoutRequestID) == "" {
		httperrors.Write(w, http.StatusBadRequest, dto.PaymentCallbackResponse{
			Success: false,
			Message: "checkout_request_id is required",
		})
		return
	}
	if h.settler == nil {
		httperrors.Write(w, http.StatusInternalServerError, dto.PaymentCallbackResponse{
			Success: false,
			Message: "settlement is unavailable",
		})
		return
	}

	outcome, err := h.settler.HandleCallback(r.Context(), paymentsvc.Callback{
		CheckoutID:      req.CheckoutRequestID,
		Status:          req.Status,
		TransactionCode: req.TransactionCode,
		Reference:       req.Reference,
		Amount:          stringify(req.Amount),
		Phone:           req.Phone,
	})
	if err != nil {
		if errors.Is(err, paymentsvc.ErrValidation) {
			httperrors.Write(w, http.StatusBadRequest, dto.PaymentCallbackResponse{Success: false, Message: err.Error()})
			return
		}
		h.logger.Error("payment callback failed",
			zap.String("checkout_id", req.CheckoutRequestID),
			zap.Error(err),
		)
		httperrors.Write(w, http.StatusInternalServerError, dto.PaymentCallbackResponse{
			Success: false,
			Message: "callback processing failed",
		})
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentCallbackResponse{
		Success: true,
		Message: callbackMessage(outcome),
	})
}

func callbackMessage(o paymentsvc.Outcome) string {
	switch {
	case o.Status == enums.TransactionStatusPending:
		return "status noted, awaiting final result"
	case !o.Applied:
		return "already processed"
	case o.Status == enums.TransactionStatusCompleted:
		return "payment completed"
	default:
		return "payment marked failed"
	}
}
