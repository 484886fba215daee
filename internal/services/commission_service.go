package services

import (
	"context"
	"fmt"
	"time"

	"github.com/collab-platform/backend/internal/config"
	"github.com/collab-platform/backend/internal/models"
	"go.uber.org/zap"
)

// CommissionService turns an agreed amount into the platform-fee/net split
// and the advance/final split. All arithmetic is integer paise.
type CommissionService struct {
	commissionRepo commissionStore
	cfg            *config.Config
	log            *zap.Logger
}

func NewCommissionService(commissionRepo commissionStore, cfg *config.Config, log *zap.Logger) *CommissionService {
	return &CommissionService{commissionRepo: commissionRepo, cfg: cfg, log: log}
}

// CurrentBPS looks up the latest effective setting. Falling back to the
// configured default is explicit and logged, never silent.
func (s *CommissionService) CurrentBPS(ctx context.Context) int {
	setting, err := s.commissionRepo.Latest(ctx)
	if err != nil {
		s.log.Warn("no active commission setting, using default",
			zap.Int("default_bps", s.cfg.CommissionBPS), zap.Error(err))
		return s.cfg.CommissionBPS
	}
	return setting.CommissionBPS
}

// SetBPS records a new commission rate, effective immediately. Old rows
// stay for history; Latest picks the newest active one.
func (s *CommissionService) SetBPS(ctx context.Context, bps int) (*models.CommissionSetting, error) {
	if bps < 0 || bps > 10000 {
		return nil, fmt.Errorf("%w: commission must be 0..10000 bps", ErrValidation)
	}
	setting := &models.CommissionSetting{
		CommissionBPS: bps,
		EffectiveFrom: time.Now(),
		Active:        true,
	}
	if err := s.commissionRepo.Create(ctx, setting); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Info("commission rate updated", zap.Int("commission_bps", bps))
	return setting, nil
}

// Breakdown computes the full split for an agreed total.
//
//	commission = round(total * bps / 10000)
//	net        = total - commission
//	advance    = round(net * advanceBPS / 10000)
//	final      = net - advance   (never rounded independently)
func (s *CommissionService) Breakdown(ctx context.Context, totalPaise int64) models.Breakdown {
	return ComputeBreakdown(totalPaise, s.CurrentBPS(ctx), s.cfg.AdvanceBPS)
}

// ComputeBreakdown is the pure core of the calculator. Half-up rounding on
// the two ratio cuts; the final leg is always the exact remainder so that
// advance+final == net and commission+net == total hold for every input.
func ComputeBreakdown(totalPaise int64, commissionBPS, advanceBPS int) models.Breakdown {
	commission := roundBPS(totalPaise, commissionBPS)
	net := totalPaise - commission
	advance := roundBPS(net, advanceBPS)
	return models.Breakdown{
		TotalPaise:      totalPaise,
		CommissionBPS:   commissionBPS,
		CommissionPaise: commission,
		NetPaise:        net,
		AdvancePaise:    advance,
		FinalPaise:      net - advance,
	}
}

func roundBPS(amount int64, bps int) int64 {
	return (amount*int64(bps) + 5000) / 10000
}
