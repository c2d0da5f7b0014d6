package settlement

import "errors"

var (
	// Validation
	ErrInvalidAmount    = errors.New("transfer amount must be positive")
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrRouteExpired     = errors.New("route deadline has passed")
	ErrInvalidRoute     = errors.New("route output amount must be positive")

	// Policy
	ErrPaused              = errors.New("settlement execution is paused")
	ErrBlacklisted         = errors.New("sender address is blacklisted")
	ErrTransferTooFrequent = errors.New("minimum transfer interval not elapsed")
	ErrDailyLimitExceeded  = errors.New("daily transfer limit exceeded")

	// Discovery / execution
	ErrAdapterNotRegistered     = errors.New("route adapter not registered")
	ErrMultiPathExecutionFailed = errors.New("one or more multi-path legs failed")
	ErrNotRefundable            = errors.New("only failed transfers can be refunded")
)
