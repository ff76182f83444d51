package service

import (
	"context"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
)

// ReportingServiceImpl implements ports.ReportingService.
type ReportingServiceImpl struct {
	listings ports.ListingRepository
	txRepo   ports.TransactionRepository
	now      func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(listings ports.ListingRepository, txRepo ports.TransactionRepository) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		listings: listings,
		txRepo:   txRepo,
		now:      time.Now,
	}
}

// GetMarketStats returns listing counts and settled volume for the period.
func (s *ReportingServiceImpl) GetMarketStats(ctx context.Context, period string) (*domain.MarketStats, error) {
	var since *time.Time

	switch period {
	case "day":
		t := s.now().AddDate(0, 0, -1)
		since = &t
	case "week":
		t := s.now().AddDate(0, 0, -7)
		since = &t
	case "month":
		t := s.now().AddDate(0, -1, 0)
		since = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	listed, sold, err := s.listings.CountSince(ctx, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	volume, err := s.txRepo.SumByType(ctx, domain.TransactionTypeSaleProceeds, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	fees, err := s.txRepo.SumByType(ctx, domain.TransactionTypePlatformFee, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	retained, err := s.txRepo.SumByType(ctx, domain.TransactionTypeExcessRetained, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	return &domain.MarketStats{
		Listed:       listed,
		Sold:         sold,
		Volume:       volume,
		FeesReceived: fees,
		Retained:     retained,
	}, nil
}
