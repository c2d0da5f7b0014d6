package settlement

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

// limitTracker serializes per-user rate-limit and daily-cap accounting. The
// read-check-write sequence for one user is a critical section: two
// concurrent transfers from the same sender cannot both observe a stale
// "allowed" state.
type limitTracker struct {
	mu           sync.Mutex
	users        map[common.Address]*bridge.UserLimits
	userLocks    map[common.Address]*sync.Mutex
	overrides    map[common.Address]*big.Int
	blacklist    map[common.Address]bool
	defaultDaily *big.Int
	minInterval  time.Duration
}

func newLimitTracker(defaultDaily *big.Int, minInterval time.Duration) *limitTracker {
	return &limitTracker{
		users:        make(map[common.Address]*bridge.UserLimits),
		userLocks:    make(map[common.Address]*sync.Mutex),
		overrides:    make(map[common.Address]*big.Int),
		blacklist:    make(map[common.Address]bool),
		defaultDaily: defaultDaily,
		minInterval:  minInterval,
	}
}

// lockUser returns the mutex serializing one user's limit accounting.
func (t *limitTracker) lockUser(user common.Address) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.userLocks[user]; ok {
		return l
	}
	l := &sync.Mutex{}
	t.userLocks[user] = l
	return l
}

func (t *limitTracker) limits(user common.Address) *bridge.UserLimits {
	if l, ok := t.users[user]; ok {
		return l
	}
	l := &bridge.UserLimits{DailyTransferred: big.NewInt(0)}
	t.users[user] = l
	return l
}

func (t *limitTracker) dailyLimitFor(user common.Address) *big.Int {
	if override, ok := t.overrides[user]; ok {
		return override
	}
	return t.defaultDaily
}

// reserve validates the rate limit and daily cap for one transfer and, when
// allowed, commits the usage in the same critical section. Callers must hold
// the user's lock from lockUser.
func (t *limitTracker) reserve(user common.Address, amount *big.Int, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	l := t.limits(user)

	if !l.LastTransferAt.IsZero() && now.Sub(l.LastTransferAt) < t.minInterval {
		return ErrTransferTooFrequent
	}

	// Lazy daily reset: evaluated on write, not by a background timer.
	if l.DayStart.IsZero() || now.Sub(l.DayStart) >= 24*time.Hour {
		l.DayStart = now
		l.DailyTransferred = big.NewInt(0)
	}

	if !l.Whitelisted {
		projected := new(big.Int).Add(l.DailyTransferred, amount)
		if projected.Cmp(t.dailyLimitFor(user)) > 0 {
			return ErrDailyLimitExceeded
		}
	}

	l.DailyTransferred = new(big.Int).Add(l.DailyTransferred, amount)
	l.LastTransferAt = now
	l.TransferCount++
	return nil
}

func (t *limitTracker) isBlacklisted(user common.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blacklist[user]
}

func (t *limitTracker) setBlacklisted(user common.Address, blacklisted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if blacklisted {
		t.blacklist[user] = true
		return
	}
	delete(t.blacklist, user)
}

func (t *limitTracker) setDailyLimit(user common.Address, limit *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit == nil {
		delete(t.overrides, user)
		return
	}
	t.overrides[user] = new(big.Int).Set(limit)
}

func (t *limitTracker) setWhitelisted(user common.Address, whitelisted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits(user).Whitelisted = whitelisted
}

// snapshot returns a copy of the user's current limits.
func (t *limitTracker) snapshot(user common.Address) bridge.UserLimits {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.limits(user)
	cp := *l
	cp.DailyTransferred = new(big.Int).Set(l.DailyTransferred)
	return cp
}
