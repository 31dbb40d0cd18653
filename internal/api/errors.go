package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

var statusByCode = map[string]int{
	"access_owner":          http.StatusForbidden,
	"insufficient_balance":  http.StatusConflict,
	"invalid_coupon":        http.StatusBadRequest,
	"invalid_signature":     http.StatusBadRequest,
	"verify_failed":         http.StatusUnauthorized,
	"coupon_already_exists": http.StatusConflict,
	"coupon_already_burned": http.StatusConflict,
	"coupon_not_found":      http.StatusNotFound,
	"transfer_failed":       http.StatusBadGateway,
	"batch_too_large":       http.StatusBadRequest,
}

// StatusFor maps a ledger result code to its HTTP status.
func StatusFor(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := ledger.Code(err)
	status := StatusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
