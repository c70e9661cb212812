package payroll

import (
	"errors"

	"github.com/nspcc-dev/payroll-ledger/common"
)

var (
	// ErrUnauthorized is returned when the caller has no rights to invoke the
	// method. Owner, oracle and employee witness errors of package common
	// wrap it.
	ErrUnauthorized = common.ErrWitnessFailed
	// ErrNotFound is returned when referenced employee or token is missing.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on duplicate employees and tokens.
	ErrAlreadyExists = errors.New("already exists")
	// ErrLimitExceeded is returned when the accepted token limit is hit.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrInvalidArgument is returned on malformed method arguments.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCooldown is returned when payday or allocation change is requested
	// before the pay period has elapsed.
	ErrCooldown = errors.New("pay period has not elapsed")
	// ErrPaused is returned by mutating methods of a paused ledger.
	ErrPaused = errors.New("ledger is paused")
	// ErrTransferFailed is returned when the payment rail fails to make
	// transfers. No state is changed in this case.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrNotInitialized is returned by Load when the storage holds no ledger.
	ErrNotInitialized = errors.New("ledger is not initialized")
)
