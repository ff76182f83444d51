package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionMint     AuditAction = "MINT"
	AuditActionApprove  AuditAction = "APPROVE"
	AuditActionTransfer AuditAction = "TRANSFER"
	AuditActionList     AuditAction = "LIST"
	AuditActionPurchase AuditAction = "PURCHASE"
	AuditActionDeposit  AuditAction = "DEPOSIT"
	AuditActionWithdraw AuditAction = "WITHDRAW"
	AuditActionLogin    AuditAction = "LOGIN"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID       `json:"id"`
	Actor        *common.Address `json:"actor,omitempty"`
	Action       AuditAction     `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Details      string          `json:"details,omitempty"` // JSON string
	IPAddress    string          `json:"ip_address"`
	CreatedAt    time.Time       `json:"created_at"`
}
