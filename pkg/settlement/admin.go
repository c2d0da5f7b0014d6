package settlement

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/settlement-switch/pkg/auth"
	"github.com/chainsafe/settlement-switch/pkg/bridge"
)

// Admin operations. Every entry point takes an explicit capability token and
// verifies the admin role before touching state; there is no ambient caller
// identity.

// RegisterBridge adds an adapter to the registry.
func (s *Switch) RegisterBridge(ctx context.Context, c auth.Capability, adapter bridge.Adapter, chains, tokens []string) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	return s.registry.RegisterBridge(ctx, adapter, chains, tokens)
}

// EnableBridge marks an adapter eligible for routing.
func (s *Switch) EnableBridge(ctx context.Context, c auth.Capability, name string) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	return s.registry.EnableBridge(ctx, name)
}

// DisableBridge removes an adapter from routing without deregistering it.
func (s *Switch) DisableBridge(ctx context.Context, c auth.Capability, name, reason string) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	return s.registry.DisableBridge(ctx, name, reason)
}

// Pause rejects all execution-class operations until Unpause. Read paths and
// in-flight transfers are unaffected.
func (s *Switch) Pause(ctx context.Context, c auth.Capability, reason string) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	s.setPaused(ctx, true, reason)
	return nil
}

// Unpause resumes execution-class operations.
func (s *Switch) Unpause(ctx context.Context, c auth.Capability) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	s.setPaused(ctx, false, "")
	return nil
}

func (s *Switch) setPaused(ctx context.Context, paused bool, reason string) {
	s.pauseMu.Lock()
	changed := s.paused != paused
	s.paused = paused
	s.pauseMu.Unlock()
	if !changed {
		return
	}
	s.logger.Warn("pause state changed", zap.Bool("paused", paused), zap.String("reason", reason))
	s.bus.Publish(ctx, bridge.EmergencyPause{Paused: paused, Reason: reason})
}

// SetChainConfig replaces a chain's supported token set. An empty token list
// removes the chain from the topology; routes already cached or in flight are
// not revisited.
func (s *Switch) SetChainConfig(ctx context.Context, c auth.Capability, chainID string, tokens []string) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	s.topo.set(chainID, tokens)
	s.bus.Publish(ctx, bridge.ChainConfigUpdated{
		ChainID: chainID,
		Tokens:  tokens,
		Removed: len(tokens) == 0,
	})
	return nil
}

// SetUserDailyLimit overrides one user's daily cap. A nil limit restores the
// configured default.
func (s *Switch) SetUserDailyLimit(ctx context.Context, c auth.Capability, user common.Address, limit *big.Int) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	s.limits.setDailyLimit(user, limit)
	s.bus.Publish(ctx, bridge.UserLimitsUpdated{User: user, DailyLimit: limit})
	return nil
}

// SetWhitelisted exempts a user from the daily cap. Rate limiting still applies.
func (s *Switch) SetWhitelisted(ctx context.Context, c auth.Capability, user common.Address, whitelisted bool) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	s.limits.setWhitelisted(user, whitelisted)
	s.bus.Publish(ctx, bridge.UserLimitsUpdated{User: user, Whitelisted: whitelisted})
	return nil
}

// SetBlacklisted blocks or unblocks a user from execution-class operations.
func (s *Switch) SetBlacklisted(ctx context.Context, c auth.Capability, user common.Address, blacklisted bool) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	s.limits.setBlacklisted(user, blacklisted)
	s.bus.Publish(ctx, bridge.BlacklistUpdated{User: user, Blacklisted: blacklisted})
	return nil
}

// SetCacheTTL changes the route cache TTL. Existing entries are re-evaluated
// against the new TTL on their next lookup.
func (s *Switch) SetCacheTTL(_ context.Context, c auth.Capability, ttl time.Duration) error {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return err
	}
	s.cache.setTTL(ttl)
	return nil
}

// RefundTransfer returns a failed transfer's principal to its sender and
// moves the entry to REFUNDED. Only FAILED transfers are refundable; the
// collected fee is not returned.
func (s *Switch) RefundTransfer(ctx context.Context, c auth.Capability, id string) (*bridge.Transfer, error) {
	if err := c.Require(auth.RoleAdmin); err != nil {
		return nil, err
	}

	t, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != bridge.TransferStatusFailed {
		return nil, ErrNotRefundable
	}

	if err := s.vault.Release(ctx, t.Sender, t.Route.TokenIn, t.Route.SrcChain, t.Route.AmountIn); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.ledger.UpdateStatus(ctx, id, bridge.TransferStatusRefunded, now); err != nil {
		return nil, err
	}
	t.Status = bridge.TransferStatusRefunded
	t.CompletedAt = now

	s.logger.Info("transfer refunded",
		zap.String("transfer_id", id),
		zap.String("sender", t.Sender.Hex()),
		zap.String("amount", t.Route.AmountIn.String()),
	)
	return t, nil
}
