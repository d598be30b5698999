package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ship-kit/billing/internal/app/service/event_log"
	"github.com/ship-kit/billing/internal/app/service/ledger"
	"github.com/ship-kit/billing/internal/app/service/statistics"
	"github.com/ship-kit/billing/pkg/response"
)

// @Summary      List payments
// @Description  Paginated, filtered listing of payment ledger rows.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ledger.ScanPaymentsRequest true "Filters and pagination"
// @Success      200  {object}  handlers.RespScanPayments
// @Router       /api/v1/admin/payments/scan [post]
func ApiScanPayments(l *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ScanPaymentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := l.ScanPayments(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Recent webhook events
// @Description  Lists the newest webhook audit log entries.
// @Tags         Admin
// @Produce      json
// @Param        limit query int false "Max entries (default 50)"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/webhook_events [get]
func ApiRecentWebhookEvents(el *event_log.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		rows, err := el.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      Revenue statistics
// @Description  Daily payment counts and revenue aggregated from the ledger.
// @Tags         Admin
// @Produce      json
// @Param        from query string false "Inclusive start day, YYYY-MM-DD"
// @Param        to   query string false "Inclusive end day, YYYY-MM-DD"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/statistics/revenue [get]
func ApiRevenueStatistics(stats *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &statistics.RevenueStatisticsRequest{
			From: c.Query("from"),
			To:   c.Query("to"),
		}
		res, err := stats.GetRevenueStatistics(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, l *ledger.Service, el *event_log.Service, stats *statistics.Service) {
	r.POST("/payments/scan", ApiScanPayments(l))
	r.GET("/webhook_events", ApiRecentWebhookEvents(el))
	r.GET("/statistics/revenue", ApiRevenueStatistics(stats))
}
