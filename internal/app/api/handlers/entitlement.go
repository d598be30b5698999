package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ship-kit/billing/internal/app/service/entitlement"
	"github.com/ship-kit/billing/pkg/response"
)

// @Summary      User entitlement
// @Description  Returns whether a user currently holds an active entitlement, derived from the payment ledger.
// @Tags         Entitlement
// @Produce      json
// @Param        user_id path string true "Internal user id"
// @Success      200  {object}  handlers.RespEntitlement
// @Router       /api/v1/entitlements/{user_id} [get]
func ApiGetEntitlement(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "user_id required"))
			return
		}

		ent, err := svc.GetUserEntitlement(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(ent))
	}
}

func RegisterEntitlementRoutes(r gin.IRouter, svc *entitlement.Service) {
	r.GET("/entitlements/:user_id", ApiGetEntitlement(svc))
}
