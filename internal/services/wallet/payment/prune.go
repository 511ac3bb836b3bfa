package payment

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Prune deletes never-claimed pending requests that expired more than the
// retention window ago.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := s.clock().UTC().Add(-s.cfg.Retention)
	removed, err := s.store.DeleteStalePayments(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune payments: %w", err)
	}
	return removed, nil
}

// StartPruner runs Prune on a ticker until ctx ends.
func (s *Service) StartPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
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
				removed, err := s.Prune(ctx)
				if err != nil {
					log.Printf("payment prune: %v", err)
					continue
				}
				if removed > 0 {
					log.Printf("payment prune removed %d stale requests", removed)
				}
			}
		}
	}()
}
