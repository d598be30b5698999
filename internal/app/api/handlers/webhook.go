package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ship-kit/billing/internal/app/service/ledger"
	wh "github.com/ship-kit/billing/internal/app/service/webhook_handler"
	"github.com/ship-kit/billing/internal/platform/lemonsqueezy"
	"github.com/ship-kit/billing/pkg/config"
	"github.com/ship-kit/billing/pkg/logctx"
	"github.com/ship-kit/billing/pkg/response"
	"github.com/ship-kit/billing/pkg/types"
)

// @Summary      Payment provider webhook
// @Description  Ingests signed webhook events from a payment provider. The X-Signature header carries a hex HMAC-SHA256 of the raw body.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        provider path string true "Payment provider name"
// @Success      200  {object}  handlers.RespOK
// @Failure      400  {object}  handlers.RespOK
// @Failure      401  {object}  handlers.RespOK
// @Router       /webhooks/{provider} [post]
// ApiPaymentWebhook handles inbound payment provider webhooks.
func ApiPaymentWebhook(h *wh.Handler, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, h.Logger)
		provider := types.PaymentProvider(c.Param("provider"))
		log.Infow("webhook_received", "provider", provider)

		// Enforce the body cap before any parsing.
		maxBytes := cfg.Webhooks.MaxBodyBytes
		if maxBytes <= 0 {
			maxBytes = 1 << 20
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			log.Warnw("webhook_body_rejected", "provider", provider, "error", err.Error())
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "request body too large or unreadable"))
			return
		}

		signature := c.GetHeader(lemonsqueezy.SignatureHeader)
		if signature == "" {
			log.Warnw("webhook_signature_missing", "provider", provider)
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "missing signature header"))
			return
		}

		res, err := h.Handle(c.Request.Context(), provider, rawBody, signature)
		if err != nil {
			switch {
			case errors.Is(err, wh.ErrUnknownProvider):
				log.Warnw("webhook_unknown_provider", "provider", provider)
				c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, "unknown provider"))
			case errors.Is(err, wh.ErrBadSignature):
				// No payload echo on auth failures.
				log.Warnw("webhook_signature_invalid", "provider", provider)
				c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid signature"))
			case errors.Is(err, lemonsqueezy.ErrMalformedPayload):
				log.Warnw("webhook_payload_malformed", "provider", provider, "error", err.Error())
				c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "malformed payload"))
			case errors.Is(err, ledger.ErrOutOfOrderEvent):
				// 500 on purpose: the provider retries, and the base event
				// presumably lands in the meantime.
				log.Errorw("webhook_out_of_order", "provider", provider, "error", err.Error())
				c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, "event arrived out of order"))
			default:
				log.Errorw("webhook_handle_error", "provider", provider, "error", err.Error())
				c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, "internal error"))
			}
			return
		}

		log.Infow("webhook_acked", "provider", provider, "event", res.EventName, "result", res.Status)
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *wh.Handler, cfg *config.Config) {
	// Mounted at "/webhooks".
	r.POST("/:provider", ApiPaymentWebhook(h, cfg))
	r.GET("/:provider", func(c *gin.Context) {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, response.ErrorT[any](response.APIResponseCodeBadRequest, "method not allowed"))
	})
}
