package handler

import (
	"strconv"

	"nft-marketplace/internal/adapter/http/dto"
	"nft-marketplace/internal/adapter/http/middleware"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// RegistryHandler handles asset registry endpoints.
type RegistryHandler struct {
	registry ports.RegistryService
}

// NewRegistryHandler creates a new RegistryHandler.
func NewRegistryHandler(registry ports.RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// Info handles GET /api/v1/registry.
func (h *RegistryHandler) Info(c *gin.Context) {
	info, err := h.registry.Info(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RegistryResponse{
		Address:    info.Address.Hex(),
		Name:       info.Name,
		Symbol:     info.Symbol,
		TokenCount: info.TokenCount,
	})
}

// BalanceOf handles GET /api/v1/registry/balances/:owner.
func (h *RegistryHandler) BalanceOf(c *gin.Context) {
	owner, err := parseAddress("owner", c.Param("owner"))
	if err != nil {
		response.Error(c, err)
		return
	}
	n, err := h.registry.BalanceOf(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"owner": owner.Hex(), "balance": n})
}

// Mint handles POST /api/v1/assets. The caller becomes the owner.
func (h *RegistryHandler) Mint(c *gin.Context) {
	owner, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	id, err := h.registry.Mint(c.Request.Context(), owner, req.MetadataURI)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxResourceID, strconv.FormatUint(id, 10))

	asset, err := h.registry.GetAsset(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toAssetResponse(asset))
}

// GetAsset handles GET /api/v1/assets/:id.
func (h *RegistryHandler) GetAsset(c *gin.Context) {
	id, err := idParam(c, "id", "Asset")
	if err != nil {
		response.Error(c, err)
		return
	}
	asset, err := h.registry.GetAsset(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toAssetResponse(asset))
}

// Transfer handles POST /api/v1/assets/:id/transfer.
func (h *RegistryHandler) Transfer(c *gin.Context) {
	operator, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := idParam(c, "id", "Asset")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	from := operator
	if req.From != "" {
		if from, err = parseAddress("from", req.From); err != nil {
			response.Error(c, err)
			return
		}
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.registry.Transfer(c.Request.Context(), operator, id, from, to); err != nil {
		response.Error(c, err)
		return
	}

	asset, err := h.registry.GetAsset(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toAssetResponse(asset))
}

// SetApproval handles PUT /api/v1/approvals.
func (h *RegistryHandler) SetApproval(c *gin.Context) {
	owner, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	operator, err := parseAddress("operator", req.Operator)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.registry.SetApprovalForAll(c.Request.Context(), owner, operator, *req.Approved); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ApprovalResponse{
		Registry: h.registry.Address().Hex(),
		Owner:    owner.Hex(),
		Operator: operator.Hex(),
		Approved: *req.Approved,
	})
}

// IsApproved handles GET /api/v1/approvals/:owner/:operator.
func (h *RegistryHandler) IsApproved(c *gin.Context) {
	owner, err := parseAddress("owner", c.Param("owner"))
	if err != nil {
		response.Error(c, err)
		return
	}
	operator, err := parseAddress("operator", c.Param("operator"))
	if err != nil {
		response.Error(c, err)
		return
	}

	approved, err := h.registry.IsApprovedForAll(c.Request.Context(), owner, operator)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ApprovalResponse{
		Registry: h.registry.Address().Hex(),
		Owner:    owner.Hex(),
		Operator: operator.Hex(),
		Approved: approved,
	})
}

func toAssetResponse(a *domain.Asset) dto.AssetResponse {
	resp := dto.AssetResponse{
		Registry:    a.Registry.Hex(),
		AssetID:     a.ID,
		Owner:       a.Owner.Hex(),
		MetadataURI: a.MetadataURI,
	}
	if !a.MintedAt.IsZero() {
		resp.MintedAt = formatTime(a.MintedAt)
	}
	return resp
}
