package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/transport/http/dto"
	httperrors "github.com/GK-FY/bulk/internal/transport/http/errors"
)

const defaultTokenSubject = "admin-api"

type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
}

// TokenHandler trades a valid API key for a short-lived admin token. The
// route sits behind the API key middleware.
type TokenHandler struct {
	issuer TokenIssuer
	logger *zap.Logger
}

func NewTokenHandler(issuer TokenIssuer, logger *zap.Logger) *TokenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenHandler{issuer: issuer, logger: logger}
}

func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req dto.AdminTokenRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadRequest(w, "INVALID_JSON", "request body must be valid JSON")
			return
		}
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = defaultTokenSubject
	}

	token, expiresAt, err := h.issuer.Issue(subject)
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		writeInternal(w, "TOKEN_FAILED", "failed to issue token")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdminTokenResponse{Token: token, ExpiresAt: expiresAt})
}
