package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartPendingCleanup запускает фоновое удаление ожидающих пополнений старше ttl.
// При ttl <= 0 ожидающие пополнения хранятся бессрочно.
func (s *Service) StartPendingCleanup(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupPendingPayments(ctx, ttl)
			}
		}
	}()
}

func (s *Service) cleanupPendingPayments(ctx context.Context, ttl time.Duration) {
	cutoff := s.now().Add(-ttl)

	deleted, err := s.repo.DeletePendingPaymentsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("cleanup pending payments error", zap.Error(err))
		return
	}

	if deleted > 0 {
		s.logger.Info("expired pending payments removed", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
