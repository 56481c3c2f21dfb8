package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/micro-ha/imou-ptz/addon/internal/service"
)

type Poller struct {
	service   *service.Service
	interval  time.Duration
	refreshCh chan struct{}
	logger    *slog.Logger
}

func New(svc *service.Service, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{service: svc, interval: interval, refreshCh: make(chan struct{}, 1), logger: logger}
}

func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.refreshCh:
			timer.Stop()
		case <-timer.C:
		}
		if err := p.service.PollOnce(ctx); err != nil {
			if errors.Is(err, service.ErrNoChannels) {
				p.logger.Info("poll skipped; no channels discovered yet")
				continue
			}
			p.logger.Error("poll failed", "err", err)
		}
	}
}
