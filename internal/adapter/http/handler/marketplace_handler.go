package handler

import (
	"errors"
	"math/big"
	"strconv"

	"nft-marketplace/internal/adapter/http/dto"
	"nft-marketplace/internal/adapter/http/middleware"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/money"
	"nft-marketplace/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey makes purchase retries return the first receipt.
const HeaderIdempotencyKey = "Idempotency-Key"

// MarketplaceHandler handles listing and purchase endpoints.
type MarketplaceHandler struct {
	market          ports.MarketplaceService
	defaultRegistry common.Address
}

// NewMarketplaceHandler creates a new MarketplaceHandler. Listings that do
// not name a registry use defaultRegistry.
func NewMarketplaceHandler(market ports.MarketplaceService, defaultRegistry common.Address) *MarketplaceHandler {
	return &MarketplaceHandler{market: market, defaultRegistry: defaultRegistry}
}

// Info handles GET /api/v1/marketplace.
func (h *MarketplaceHandler) Info(c *gin.Context) {
	info, err := h.market.Info(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.MarketplaceResponse{
		Address:      info.Address.Hex(),
		FeeAccount:   info.FeeAccount.Hex(),
		FeePercent:   info.FeePercent,
		ExcessPolicy: string(info.ExcessPolicy),
		ListingCount: info.ListingCount,
	})
}

// CreateListing handles POST /api/v1/listings.
func (h *MarketplaceHandler) CreateListing(c *gin.Context) {
	seller, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	registry := h.defaultRegistry
	if req.Registry != "" {
		if registry, err = parseAddress("registry", req.Registry); err != nil {
			response.Error(c, err)
			return
		}
	}
	price, err := money.ParseWei(req.Price)
	if errors.Is(err, money.ErrNegative) {
		response.Error(c, apperror.ErrInvalidPrice())
		return
	}
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	listing, err := h.market.CreateListing(c.Request.Context(), ports.CreateListingRequest{
		Registry: registry,
		AssetID:  req.AssetID,
		Price:    price,
		Seller:   seller,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.CtxResourceID, strconv.FormatUint(listing.ID, 10))
	response.Created(c, toListingResponse(listing))
}

// ListListings handles GET /api/v1/listings.
func (h *MarketplaceHandler) ListListings(c *gin.Context) {
	page, pageSize := pageParams(c)
	filter := domain.ListingFilter{Page: page, PageSize: pageSize}

	var err error
	if filter.Seller, err = optionalAddress(c, "seller"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Buyer, err = optionalAddress(c, "buyer"); err != nil {
		response.Error(c, err)
		return
	}
	if s := c.Query("sold"); s != "" {
		sold, err := strconv.ParseBool(s)
		if err != nil {
			response.Error(c, apperror.Validation("sold must be true or false"))
			return
		}
		filter.Sold = &sold
	}

	listings, total, err := h.market.ListListings(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ListingResponse, 0, len(listings))
	for i := range listings {
		items = append(items, toListingResponse(&listings[i]))
	}
	response.Paged(c, items, page, pageSize, total)
}

// GetListing handles GET /api/v1/listings/:id.
func (h *MarketplaceHandler) GetListing(c *gin.Context) {
	id, err := idParam(c, "id", "Listing")
	if err != nil {
		response.Error(c, err)
		return
	}
	listing, err := h.market.GetListing(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toListingResponse(listing))
}

// TotalPayable handles GET /api/v1/listings/:id/total.
func (h *MarketplaceHandler) TotalPayable(c *gin.Context) {
	id, err := idParam(c, "id", "Listing")
	if err != nil {
		response.Error(c, err)
		return
	}
	total, fee, err := h.market.TotalPayable(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.TotalPayableResponse{
		ListingID: id,
		Price:     new(big.Int).Sub(total, fee).String(),
		Fee:       fee.String(),
		Total:     total.String(),
		TotalEth:  money.FormatEther(total),
	})
}

// Purchase handles POST /api/v1/listings/:id/purchase. The signed-in
// address is the buyer and pays from its deposited balance.
func (h *MarketplaceHandler) Purchase(c *gin.Context) {
	buyer, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := idParam(c, "id", "Listing")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	payment, err := money.ParseWei(req.Payment)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	receipt, err := h.market.Purchase(c.Request.Context(), ports.PurchaseRequest{
		ListingID:      id,
		Buyer:          buyer,
		Payment:        payment,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toReceiptResponse(receipt))
}

func toListingResponse(l *domain.Listing) dto.ListingResponse {
	resp := dto.ListingResponse{
		ListingID: l.ID,
		Registry:  l.Registry.Hex(),
		AssetID:   l.AssetID,
		Price:     weiString(l.Price),
		PriceEth:  money.FormatEther(l.Price),
		Seller:    l.Seller.Hex(),
		Sold:      l.Sold,
		CreatedAt: formatTime(l.CreatedAt),
	}
	if l.Buyer != nil {
		b := l.Buyer.Hex()
		resp.Buyer = &b
	}
	if l.SoldAt != nil {
		s := formatTime(*l.SoldAt)
		resp.SoldAt = &s
	}
	return resp
}

func toReceiptResponse(r *domain.Receipt) dto.ReceiptResponse {
	return dto.ReceiptResponse{
		ListingID:      r.ListingID,
		Registry:       r.Registry.Hex(),
		AssetID:        r.AssetID,
		Seller:         r.Seller.Hex(),
		Buyer:          r.Buyer.Hex(),
		Price:          weiString(r.Price),
		FeePaid:        weiString(r.FeePaid),
		TotalPaid:      weiString(r.TotalPaid),
		TotalPaidEth:   money.FormatEther(r.TotalPaid),
		ExcessRefunded: weiString(r.ExcessRefunded),
		ExcessRetained: weiString(r.ExcessRetained),
		SettledAt:      formatTime(r.SettledAt),
	}
}
