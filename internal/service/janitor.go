package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"email-gate/internal/repository"
)

// Janitor borra periódicamente los códigos vencidos. El canje nunca depende
// de él: FindActive ya ignora filas vencidas.
type Janitor struct {
	logger   *zap.Logger
	pending  repository.PendingRepository
	interval time.Duration
	nowFunc  func() time.Time
}

func NewJanitor(logger *zap.Logger, pending repository.PendingRepository, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		logger:   logger,
		pending:  pending,
		interval: interval,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// Run limpia hasta que ctx se cancela. Siempre devuelve nil.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep hace una pasada de limpieza.
func (j *Janitor) Sweep(ctx context.Context) int64 {
	n, err := j.pending.DeleteExpired(ctx, j.nowFunc())
	if err != nil {
		j.logger.Warn("delete expired codes failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.logger.Info("expired codes deleted", zap.Int64("count", n))
	}
	return n
}
