package lookup

import (
	"context"
	"fmt"
	"time"

	"github.com/DarkSmileee/BlockShelf/pkg/config"
	pkgerrors "github.com/DarkSmileee/BlockShelf/pkg/errors"
)

type counterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Limiter is the dual-scope lookup throttle: the per-user counter is the
// primary budget, the per-IP counter is a looser bound that still catches
// abuse from shared addresses.
type Limiter struct {
	store  counterStore
	window time.Duration
	user   int64
	ip     int64
	now    func() time.Time
}

// NewLimiter builds a limiter from the lookup configuration.
func NewLimiter(store counterStore, cfg config.LookupConfig) (*Limiter, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limiter counter store is required")
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		store:  store,
		window: window,
		user:   int64(cfg.UserLimit),
		ip:     int64(cfg.IPLimit),
		now:    time.Now,
	}, nil
}

// Allow spends one unit of both budgets. The request passes only when
// neither counter is over its limit. Counters live in fixed windows keyed
// by floor(now/window) and expire with the window, so there is nothing to
// clean up.
func (l *Limiter) Allow(ctx context.Context, userID, ip string) (bool, error) {
	bucket := l.now().Unix() / int64(l.window/time.Second)

	userOK, _, err := l.store.FixedWindowAllow(ctx,
		fmt.Sprintf("lookup:user:%s:%d", userID, bucket), l.user, l.window)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "user rate counter")
	}

	ipOK := true
	if ip != "" {
		ipOK, _, err = l.store.FixedWindowAllow(ctx,
			fmt.Sprintf("lookup:ip:%s:%d", ip, bucket), l.ip, l.window)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ip rate counter")
		}
	}

	return userOK && ipOK, nil
}
