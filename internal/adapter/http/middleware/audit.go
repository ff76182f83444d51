package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxResourceID lets a handler name the resource it created, such as a
// freshly minted asset id, for the audit entry.
const CtxResourceID = "resource_id"

// AuditLog creates an audit middleware that logs successful write operations.
// It maps the matched route and method to audit actions.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if addr, ok := CallerAddress(c); ok {
			entry.Actor = &addr
		}
		if id := c.GetString(CtxResourceID); id != "" {
			entry.ResourceID = id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/auth/login" && method == http.MethodPost:
		return domain.AuditActionLogin, "session"
	case route == "/api/v1/assets" && method == http.MethodPost:
		return domain.AuditActionMint, "asset"
	case route == "/api/v1/assets/:id/transfer" && method == http.MethodPost:
		return domain.AuditActionTransfer, "asset"
	case route == "/api/v1/approvals" && method == http.MethodPut:
		return domain.AuditActionApprove, "approval"
	case route == "/api/v1/listings" && method == http.MethodPost:
		return domain.AuditActionList, "listing"
	case route == "/api/v1/listings/:id/purchase" && method == http.MethodPost:
		return domain.AuditActionPurchase, "listing"
	case route == "/api/v1/accounts/me/deposit" && method == http.MethodPost:
		return domain.AuditActionDeposit, "account"
	case route == "/api/v1/accounts/me/withdraw" && method == http.MethodPost:
		return domain.AuditActionWithdraw, "account"
	}
	return "", ""
}
