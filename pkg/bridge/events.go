package bridge

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event kinds published on the notification bus.
const (
	EventRouteCalculated            = "route_calculated"
	EventTransferInitiated          = "transfer_initiated"
	EventTransferCompleted          = "transfer_completed"
	EventTransferFailed             = "transfer_failed"
	EventMultiPathTransferInitiated = "multi_path_transfer_initiated"
	EventBridgeAdapterRegistered    = "bridge_adapter_registered"
	EventBridgeAdapterStatusChanged = "bridge_adapter_status_changed"
	EventEmergencyPause             = "emergency_pause"
	EventRouteCacheUpdated          = "route_cache_updated"
	EventChainConfigUpdated         = "chain_config_updated"
	EventUserLimitsUpdated          = "user_limits_updated"
	EventBlacklistUpdated           = "blacklist_updated"
)

// RouteCalculated is published after a route query resolves.
type RouteCalculated struct {
	Route    *Route
	Mode     RoutingMode
	CacheHit bool
}

func (RouteCalculated) Kind() string { return EventRouteCalculated }

// TransferInitiated is published once custody is taken and the ledger entry exists.
type TransferInitiated struct {
	TransferID string
	Sender     common.Address
	Recipient  common.Address
	Adapter    string
	Amount     *big.Int
}

func (TransferInitiated) Kind() string { return EventTransferInitiated }

// TransferCompleted marks the terminal success of a transfer.
type TransferCompleted struct {
	TransferID  string
	Adapter     string
	CompletedAt time.Time
}

func (TransferCompleted) Kind() string { return EventTransferCompleted }

// TransferFailed marks the terminal failure of a transfer.
type TransferFailed struct {
	TransferID string
	Adapter    string
	Reason     string
}

func (TransferFailed) Kind() string { return EventTransferFailed }

// MultiPathTransferInitiated is published once per multi-path execution.
type MultiPathTransferInitiated struct {
	TransferIDs []string
	Sender      common.Address
	TotalAmount *big.Int
	Legs        int
}

func (MultiPathTransferInitiated) Kind() string { return EventMultiPathTransferInitiated }

// AdapterRegistered is published when a new adapter joins the registry.
type AdapterRegistered struct {
	Adapter string
	Chains  []string
}

func (AdapterRegistered) Kind() string { return EventBridgeAdapterRegistered }

// AdapterStatusChanged is published on enable/disable/health transitions.
type AdapterStatusChanged struct {
	Adapter string
	Enabled bool
	Healthy bool
	Reason  string
}

func (AdapterStatusChanged) Kind() string { return EventBridgeAdapterStatusChanged }

// EmergencyPause is published when execution is paused or resumed.
type EmergencyPause struct {
	Paused bool
	Reason string
}

func (EmergencyPause) Kind() string { return EventEmergencyPause }

// RouteCacheUpdated is published after a cache write.
type RouteCacheUpdated struct {
	Key string
	TTL time.Duration
}

func (RouteCacheUpdated) Kind() string { return EventRouteCacheUpdated }

// ChainConfigUpdated is published after an admin chain-config change.
type ChainConfigUpdated struct {
	ChainID string
	Tokens  []string
	Removed bool
}

func (ChainConfigUpdated) Kind() string { return EventChainConfigUpdated }

// UserLimitsUpdated is published after an admin limits change.
type UserLimitsUpdated struct {
	User        common.Address
	DailyLimit  *big.Int
	Whitelisted bool
}

func (UserLimitsUpdated) Kind() string { return EventUserLimitsUpdated }

// BlacklistUpdated is published after an admin blacklist change.
type BlacklistUpdated struct {
	User        common.Address
	Blacklisted bool
}

func (BlacklistUpdated) Kind() string { return EventBlacklistUpdated }
