package service

import (
	"context"
	"fmt"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// RegistryConfig identifies a registry collection.
type RegistryConfig struct {
	Address common.Address
	Name    string
	Symbol  string
}

// RegistryServiceImpl implements ports.RegistryService on top of the asset
// repository. Every mutation runs in a transaction so it can join a
// marketplace settlement.
type RegistryServiceImpl struct {
	cfg        RegistryConfig
	assets     ports.AssetRepository
	sequences  ports.SequenceRepository
	transactor ports.Transactor
	cache      ports.MetadataCache
	metrics    *Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewRegistryService creates a new RegistryServiceImpl. cache may be nil.
func NewRegistryService(
	cfg RegistryConfig,
	assets ports.AssetRepository,
	sequences ports.SequenceRepository,
	transactor ports.Transactor,
	cache ports.MetadataCache,
	metrics *Metrics,
	log zerolog.Logger,
) *RegistryServiceImpl {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &RegistryServiceImpl{
		cfg:        cfg,
		assets:     assets,
		sequences:  sequences,
		transactor: transactor,
		cache:      cache,
		metrics:    metrics,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Address returns the registry identity.
func (s *RegistryServiceImpl) Address() common.Address {
	return s.cfg.Address
}

// Mint issues the next asset id to caller.
func (s *RegistryServiceImpl) Mint(ctx context.Context, caller common.Address, metadataURI string) (uint64, error) {
	if caller == (common.Address{}) {
		return 0, apperror.Validation("mint to the zero address")
	}

	var id uint64
	err := s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		next, err := s.sequences.Next(ctx, domain.AssetSequence(s.cfg.Address))
		if err != nil {
			return apperror.InternalError(fmt.Errorf("allocate asset id: %w", err))
		}
		asset := &domain.Asset{
			Registry:    s.cfg.Address,
			ID:          next,
			Owner:       caller,
			MetadataURI: metadataURI,
			MintedAt:    s.now(),
		}
		if err := s.assets.Create(ctx, asset); err != nil {
			return apperror.InternalError(fmt.Errorf("create asset: %w", err))
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.Minted.Add(1)
	s.log.Info().
		Uint64("asset_id", id).
		Str("owner", caller.Hex()).
		Msg("asset minted")

	return id, nil
}

// OwnerOf returns the current owner of assetID.
func (s *RegistryServiceImpl) OwnerOf(ctx context.Context, assetID uint64) (common.Address, error) {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return common.Address{}, err
	}
	return asset.Owner, nil
}

// GetAsset returns the asset record.
func (s *RegistryServiceImpl) GetAsset(ctx context.Context, assetID uint64) (*domain.Asset, error) {
	asset, err := s.assets.Get(ctx, s.cfg.Address, assetID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get asset: %w", err))
	}
	if asset == nil {
		return nil, apperror.ErrNotFound("Asset")
	}
	return asset, nil
}

// Transfer moves assetID from -> to on behalf of caller.
// Checks run in order: unknown asset, caller authority, from ownership, recipient.
func (s *RegistryServiceImpl) Transfer(ctx context.Context, caller common.Address, assetID uint64, from, to common.Address) error {
	return s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		asset, err := s.assets.GetForUpdate(ctx, s.cfg.Address, assetID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock asset: %w", err))
		}
		if asset == nil {
			return apperror.ErrNotFound("Asset")
		}

		if caller != from {
			approved, err := s.assets.IsApproved(ctx, s.cfg.Address, from, caller)
			if err != nil {
				return apperror.InternalError(fmt.Errorf("check approval: %w", err))
			}
			if !approved {
				return apperror.ErrUnauthorized()
			}
		}

		if asset.Owner != from {
			return apperror.ErrNotFound("Asset")
		}
		if to == (common.Address{}) {
			return apperror.Validation("transfer to the zero address")
		}

		if err := s.assets.UpdateOwner(ctx, s.cfg.Address, assetID, to); err != nil {
			return apperror.InternalError(fmt.Errorf("update owner: %w", err))
		}

		s.log.Debug().
			Uint64("asset_id", assetID).
			Str("from", from.Hex()).
			Str("to", to.Hex()).
			Str("caller", caller.Hex()).
			Msg("asset transferred")
		return nil
	})
}

// SetApprovalForAll grants or revokes operator's right to move all of
// owner's assets.
func (s *RegistryServiceImpl) SetApprovalForAll(ctx context.Context, owner, operator common.Address, approved bool) error {
	if owner == operator {
		return apperror.Validation("approve to caller")
	}
	err := s.assets.SetApproval(ctx, domain.OperatorApproval{
		Registry: s.cfg.Address,
		Owner:    owner,
		Operator: operator,
		Approved: approved,
	})
	if err != nil {
		return apperror.InternalError(fmt.Errorf("set approval: %w", err))
	}
	return nil
}

// IsApprovedForAll reports whether operator may move owner's assets.
func (s *RegistryServiceImpl) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	ok, err := s.assets.IsApproved(ctx, s.cfg.Address, owner, operator)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("check approval: %w", err))
	}
	return ok, nil
}

// Info returns the collection name, symbol and minted count.
func (s *RegistryServiceImpl) Info(ctx context.Context) (*domain.RegistryInfo, error) {
	count, err := s.sequences.Current(ctx, domain.AssetSequence(s.cfg.Address))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("token count: %w", err))
	}
	return &domain.RegistryInfo{
		Address:    s.cfg.Address,
		Name:       s.cfg.Name,
		Symbol:     s.cfg.Symbol,
		TokenCount: count,
	}, nil
}

// BalanceOf counts the assets owner holds in this registry.
func (s *RegistryServiceImpl) BalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	n, err := s.assets.CountByOwner(ctx, s.cfg.Address, owner)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("count assets: %w", err))
	}
	return n, nil
}

// TokenURI returns the metadata reference of assetID.
func (s *RegistryServiceImpl) TokenURI(ctx context.Context, assetID uint64) (string, error) {
	if s.cache != nil {
		if uri, ok := s.cache.Get(s.cfg.Address, assetID); ok {
			return uri, nil
		}
	}
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Set(s.cfg.Address, assetID, asset.MetadataURI)
	}
	return asset.MetadataURI, nil
}
