package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"premium-bot/internal/metrics"
	"premium-bot/internal/utils"
)

// SettleFunc re-checks a pending purchase identified by its provider
// reference and grants it when the provider reports settlement.
type SettleFunc func(ctx context.Context, gateway, reference string) error

type WebhookHandler struct {
	settle  SettleFunc
	allowed []string
	proxies []string
	log     *zap.Logger
}

// NewWebhookHandler accepts notifications from allowedCIDRs. Forwarding
// headers are only read from requests relayed by trustedProxies.
func NewWebhookHandler(settle SettleFunc, allowedCIDRs, trustedProxies []string, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{settle: settle, allowed: allowedCIDRs, proxies: trustedProxies, log: log}
}

// HandleYookassa accepts payment notifications from YooKassa. The body is
// only used to find the payment; its status is fetched from the API.
func (h *WebhookHandler) HandleYookassa(w http.ResponseWriter, r *http.Request) {
	status := h.handleYookassa(r)
	metrics.WebhookRequestsTotal.WithLabelValues("yookassa", strconv.Itoa(status)).Inc()
	w.WriteHeader(status)
}

func (h *WebhookHandler) handleYookassa(r *http.Request) int {
	if r.Method != http.MethodPost {
		return http.StatusMethodNotAllowed
	}

	ip := utils.ClientIP(r, h.proxies)
	if !utils.IsAllowedIP(ip, h.allowed) {
		h.log.Warn("webhook from untrusted address", zap.String("ip", ip))
		return http.StatusForbidden
	}

	var n YookassaNotification
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&n); err != nil {
		h.log.Warn("failed to decode webhook", zap.Error(err))
		return http.StatusBadRequest
	}
	if n.Object.ID == "" {
		return http.StatusBadRequest
	}

	switch n.Event {
	case "payment.succeeded", "payment.canceled", "payment.waiting_for_capture":
	default:
		h.log.Debug("ignored webhook event", zap.String("event", n.Event))
		return http.StatusOK
	}

	err := h.settle(r.Context(), "yookassa", n.Object.ID)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTokenNotFound):
		// Already settled, expired or never ours.
		h.log.Info("webhook for unknown payment", zap.String("reference", n.Object.ID))
		return http.StatusOK
	case errors.Is(err, ErrTransient):
		h.log.Warn("webhook settlement deferred", zap.String("reference", n.Object.ID), zap.Error(err))
		return http.StatusServiceUnavailable
	default:
		h.log.Error("webhook settlement failed", zap.String("reference", n.Object.ID), zap.Error(err))
		return http.StatusInternalServerError
	}
}
