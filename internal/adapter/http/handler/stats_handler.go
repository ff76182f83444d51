package handler

import (
	"nft-marketplace/internal/adapter/http/dto"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/money"
	"nft-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// StatsHandler handles marketplace statistics.
type StatsHandler struct {
	reportingSvc ports.ReportingService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(reportingSvc ports.ReportingService) *StatsHandler {
	return &StatsHandler{reportingSvc: reportingSvc}
}

// GetStats handles GET /api/v1/marketplace/stats?period=day|week|month|all.
func (h *StatsHandler) GetStats(c *gin.Context) {
	period := c.DefaultQuery("period", "all")
	stats, err := h.reportingSvc.GetMarketStats(c.Request.Context(), period)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.MarketStatsResponse{
		Period:          period,
		Listed:          stats.Listed,
		Sold:            stats.Sold,
		Volume:          weiString(stats.Volume),
		VolumeEth:       money.FormatEther(stats.Volume),
		FeesReceived:    weiString(stats.FeesReceived),
		FeesReceivedEth: money.FormatEther(stats.FeesReceived),
		Retained:        weiString(stats.Retained),
		RetainedEth:     money.FormatEther(stats.Retained),
	})
}
