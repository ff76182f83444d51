package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/money"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// MarketplaceConfig holds the parameters fixed at marketplace construction.
type MarketplaceConfig struct {
	Address      common.Address
	FeeAccount   common.Address
	FeeRate      domain.FeeRate
	ExcessPolicy domain.ExcessPolicy
}

// Validate rejects configurations the marketplace cannot run with.
func (c MarketplaceConfig) Validate() error {
	if c.Address == (common.Address{}) {
		return errors.New("marketplace address is required")
	}
	if c.FeeAccount == (common.Address{}) {
		return errors.New("fee account is required")
	}
	if c.FeeRate.Percent() > domain.MaxFeePercent {
		return fmt.Errorf("fee percent %d above %d", c.FeeRate.Percent(), domain.MaxFeePercent)
	}
	if !c.ExcessPolicy.Valid() {
		return fmt.Errorf("unknown excess policy %q", c.ExcessPolicy)
	}
	return nil
}

// MarketplaceServiceImpl implements ports.MarketplaceService.
type MarketplaceServiceImpl struct {
	cfg        MarketplaceConfig
	registries map[common.Address]ports.AssetRegistry
	listings   ports.ListingRepository
	sequences  ports.SequenceRepository
	outbox     ports.EventOutbox
	funds      ports.FundsService
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	transactor ports.Transactor
	metrics    *Metrics
	log        zerolog.Logger
	now        func() time.Time
	notify     func()
}

// NewMarketplaceService creates a new MarketplaceServiceImpl. registries are
// the asset registries listings may reference. idempCache may be nil.
func NewMarketplaceService(
	cfg MarketplaceConfig,
	registries []ports.AssetRegistry,
	listings ports.ListingRepository,
	sequences ports.SequenceRepository,
	outbox ports.EventOutbox,
	funds ports.FundsService,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.Transactor,
	metrics *Metrics,
	log zerolog.Logger,
) (*MarketplaceServiceImpl, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	byAddr := make(map[common.Address]ports.AssetRegistry, len(registries))
	for _, r := range registries {
		byAddr[r.Address()] = r
	}
	return &MarketplaceServiceImpl{
		cfg:        cfg,
		registries: byAddr,
		listings:   listings,
		sequences:  sequences,
		outbox:     outbox,
		funds:      funds,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		transactor: transactor,
		metrics:    metrics,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetEventNotifier registers fn to run after every commit that appended an
// event. The relay uses it to skip its poll delay.
func (s *MarketplaceServiceImpl) SetEventNotifier(fn func()) {
	s.notify = fn
}

func (s *MarketplaceServiceImpl) eventsCommitted() {
	if s.notify != nil {
		s.notify()
	}
}

// Address returns the marketplace's custody address.
func (s *MarketplaceServiceImpl) Address() common.Address {
	return s.cfg.Address
}

// Info returns the marketplace parameters and listing count.
func (s *MarketplaceServiceImpl) Info(ctx context.Context) (*ports.MarketplaceInfo, error) {
	count, err := s.ListingCount(ctx)
	if err != nil {
		return nil, err
	}
	return &ports.MarketplaceInfo{
		Address:      s.cfg.Address,
		FeeAccount:   s.cfg.FeeAccount,
		FeePercent:   s.cfg.FeeRate.Percent(),
		ExcessPolicy: s.cfg.ExcessPolicy,
		ListingCount: count,
	}, nil
}

// CreateListing pulls the asset into marketplace custody and records the offer.
func (s *MarketplaceServiceImpl) CreateListing(ctx context.Context, req ports.CreateListingRequest) (*domain.Listing, error) {
	if req.Price == nil || req.Price.Sign() <= 0 {
		return nil, apperror.ErrInvalidPrice()
	}
	registry, ok := s.registries[req.Registry]
	if !ok {
		return nil, apperror.ErrNotFound("Registry")
	}

	var listing *domain.Listing
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		// Seller must own the asset and have approved the marketplace.
		if err := registry.Transfer(ctx, s.cfg.Address, req.AssetID, req.Seller, s.cfg.Address); err != nil {
			return err
		}

		id, err := s.sequences.Next(ctx, domain.ListingSequence)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("allocate listing id: %w", err))
		}

		now := s.now()
		listing = &domain.Listing{
			ID:        id,
			Registry:  req.Registry,
			AssetID:   req.AssetID,
			Price:     new(big.Int).Set(req.Price),
			Seller:    req.Seller,
			CreatedAt: now,
		}
		if err := s.listings.Create(ctx, listing); err != nil {
			return apperror.InternalError(fmt.Errorf("create listing: %w", err))
		}
		if err := s.outbox.Append(ctx, domain.NewListedEvent(listing, now)); err != nil {
			return apperror.InternalError(fmt.Errorf("append listed event: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.eventsCommitted()
	s.metrics.Listed.Add(1)
	s.log.Info().
		Uint64("listing_id", listing.ID).
		Uint64("asset_id", listing.AssetID).
		Str("seller", listing.Seller.Hex()).
		Str("price", listing.Price.String()).
		Msg("listing created")

	return listing, nil
}

// GetListing returns listing id. Id 0 is never allocated.
func (s *MarketplaceServiceImpl) GetListing(ctx context.Context, id uint64) (*domain.Listing, error) {
	if id == 0 {
		return nil, apperror.ErrNotFound("Listing")
	}
	l, err := s.listings.Get(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get listing: %w", err))
	}
	if l == nil {
		return nil, apperror.ErrNotFound("Listing")
	}
	return l, nil
}

// ListListings returns one page of listings matching filter.
func (s *MarketplaceServiceImpl) ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, int64, error) {
	filter.Page, filter.PageSize = clampPage(filter.Page, filter.PageSize)
	out, total, err := s.listings.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return out, total, nil
}

// ListingCount returns the highest listing id allocated so far.
func (s *MarketplaceServiceImpl) ListingCount(ctx context.Context) (uint64, error) {
	n, err := s.sequences.Current(ctx, domain.ListingSequence)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("listing count: %w", err))
	}
	return n, nil
}

// TotalPayable returns what a buyer must pay for listing id and the fee part of it.
func (s *MarketplaceServiceImpl) TotalPayable(ctx context.Context, id uint64) (*big.Int, *big.Int, error) {
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	total, fee := s.cfg.FeeRate.TotalPayable(l.Price)
	return total, fee, nil
}

// Purchase settles listing req.ListingID to req.Buyer.
// Rejections, in order: NotFound, AlreadySold, InsufficientPayment, then
// InsufficientFunds when the buyer's deposit cannot cover the charge. All
// effects commit together or not at all.
func (s *MarketplaceServiceImpl) Purchase(ctx context.Context, req ports.PurchaseRequest) (*domain.Receipt, error) {
	payment := req.Payment
	if payment == nil {
		payment = new(big.Int)
	}
	if payment.Sign() < 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildPurchaseIdempotencyKey(req.Buyer, req.IdempotencyKey)

		// Layer 1: Redis idempotency check
		if s.idempCache != nil {
			cached, err := s.idempCache.Get(ctx, idempKey)
			if err != nil {
				s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
			}
			if cached != nil {
				r, err := unmarshalReceipt(cached)
				if err != nil {
					return nil, err
				}
				if r.ListingID != req.ListingID {
					return nil, apperror.ErrIdempotencyKeyReused()
				}
				return r, nil
			}
		}
	}

	var (
		receipt  *domain.Receipt
		replayed []byte
		respJSON []byte
	)
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if req.ListingID == 0 {
			return apperror.ErrNotFound("Listing")
		}
		l, err := s.listings.GetForUpdate(ctx, req.ListingID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock listing: %w", err))
		}
		if l == nil {
			return apperror.ErrNotFound("Listing")
		}

		// Layer 2: DB idempotency check, after the listing lock so a
		// concurrent retry sees the committed first attempt.
		if idempKey != "" {
			idempLog, err := s.idempRepo.Get(ctx, idempKey)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
			}
			if idempLog != nil {
				if idempLog.ListingID != l.ID {
					return apperror.ErrIdempotencyKeyReused()
				}
				replayed = idempLog.ResponseJSON
				return nil
			}
		}

		if l.Sold {
			return apperror.ErrAlreadySold()
		}

		total, fee := s.cfg.FeeRate.TotalPayable(l.Price)
		if payment.Cmp(total) < 0 {
			return apperror.ErrInsufficientPayment()
		}

		excess := new(big.Int).Sub(payment, total)
		charged := new(big.Int).Set(total)
		refunded, retained := new(big.Int), new(big.Int)
		if excess.Sign() > 0 {
			if s.cfg.ExcessPolicy == domain.ExcessRetain {
				charged.Set(payment)
				retained.Set(excess)
			} else {
				refunded.Set(excess)
			}
		}

		registry, ok := s.registries[l.Registry]
		if !ok {
			return apperror.InternalError(fmt.Errorf("listing %d references unconfigured registry %s", l.ID, l.Registry.Hex()))
		}

		locked := []common.Address{req.Buyer, l.Seller, s.cfg.FeeAccount}
		if retained.Sign() > 0 {
			locked = append(locked, s.cfg.Address)
		}
		if err := s.funds.Lock(ctx, locked...); err != nil {
			return err
		}

		if err := s.funds.Debit(ctx, req.Buyer, charged, domain.TransactionTypePurchase, l.ID); err != nil {
			return err
		}

		now := s.now()
		l.MarkSold(req.Buyer, now)
		if err := s.listings.MarkSold(ctx, l); err != nil {
			return apperror.InternalError(fmt.Errorf("mark sold: %w", err))
		}

		if err := s.funds.Credit(ctx, l.Seller, l.Price, domain.TransactionTypeSaleProceeds, l.ID); err != nil {
			return err
		}
		if err := s.funds.Credit(ctx, s.cfg.FeeAccount, fee, domain.TransactionTypePlatformFee, l.ID); err != nil {
			return err
		}
		if err := s.funds.Credit(ctx, s.cfg.Address, retained, domain.TransactionTypeExcessRetained, l.ID); err != nil {
			return err
		}

		if err := registry.Transfer(ctx, s.cfg.Address, l.AssetID, s.cfg.Address, req.Buyer); err != nil {
			return err
		}

		if err := s.outbox.Append(ctx, domain.NewSoldEvent(l, now)); err != nil {
			return apperror.InternalError(fmt.Errorf("append sold event: %w", err))
		}

		receipt = &domain.Receipt{
			ListingID:      l.ID,
			Registry:       l.Registry,
			AssetID:        l.AssetID,
			Seller:         l.Seller,
			Buyer:          req.Buyer,
			Price:          new(big.Int).Set(l.Price),
			FeePaid:        fee,
			TotalPaid:      charged,
			ExcessRefunded: refunded,
			ExcessRetained: retained,
			SettledAt:      now,
		}

		if idempKey != "" {
			respJSON, err = json.Marshal(receipt)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("marshal receipt: %w", err))
			}
			if err := s.idempRepo.Create(ctx, &domain.IdempotencyLog{
				Key:          idempKey,
				ListingID:    l.ID,
				ResponseJSON: respJSON,
				CreatedAt:    now,
			}); err != nil {
				return apperror.InternalError(fmt.Errorf("save idempotency log: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			s.metrics.PurchaseRejected.With("code", appErr.Code).Add(1)
		}
		return nil, err
	}
	if replayed != nil {
		return unmarshalReceipt(replayed)
	}

	s.eventsCommitted()

	// Post-process: cache in Redis (best-effort)
	if respJSON != nil && s.idempCache != nil {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.metrics.Sold.Add(1)
	s.metrics.SalePrice.Observe(money.EtherFloat(receipt.Price))
	s.log.Info().
		Uint64("listing_id", receipt.ListingID).
		Str("buyer", receipt.Buyer.Hex()).
		Str("seller", receipt.Seller.Hex()).
		Str("total_paid_eth", money.FormatEther(receipt.TotalPaid)).
		Str("fee_eth", money.FormatEther(receipt.FeePaid)).
		Msg("purchase settled successfully")

	return receipt, nil
}

func unmarshalReceipt(data []byte) (*domain.Receipt, error) {
	var r domain.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached receipt: %w", err))
	}
	return &r, nil
}
