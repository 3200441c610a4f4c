package engine

import (
	"context"
	"time"

	"liquidify/internal/solana"
)

// settler polls balances until a confirmed operation is visible, bounded by timeout.
type settler struct {
	timeout  time.Duration
	interval time.Duration
}

// balanceChange waits for the native balance of owner to differ from before
// and returns the last balance read. Reaching the timeout is not an error;
// an error is returned only when no read succeeded.
func (s settler) balanceChange(ctx context.Context, chain ChainReader, owner string, before uint64) (uint64, error) {
	return s.poll(ctx, before, func(ctx context.Context) (uint64, error) {
		return chain.GetBalance(ctx, owner)
	}, func(v uint64) bool { return v != before })
}

// tokenIncrease waits for the owner's total holding of mint to exceed before.
func (s settler) tokenIncrease(ctx context.Context, chain ChainReader, owner, mint string, before uint64) (uint64, error) {
	return s.poll(ctx, before, func(ctx context.Context) (uint64, error) {
		h, err := solana.FindTokenHolding(ctx, chain, owner, mint)
		if err != nil {
			return 0, err
		}
		return h.Total, nil
	}, func(v uint64) bool { return v > before })
}

func (s settler) poll(ctx context.Context, initial uint64, read func(context.Context) (uint64, error), done func(uint64) bool) (uint64, error) {
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	last := initial
	var lastErr error
	succeeded := false

	for {
		v, err := read(ctx)
		if err == nil {
			last, succeeded, lastErr = v, true, nil
			if done(v) {
				return v, nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if !succeeded {
				return 0, ctx.Err()
			}
			return last, nil
		case <-deadline.C:
			if !succeeded {
				return 0, lastErr
			}
			return last, nil
		case <-time.After(s.interval):
		}
	}
}
