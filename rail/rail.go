package rail

import (
	"context"
	"errors"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
)

// Native is the asset identifier of the native currency.
var Native = util.Uint160{}

var (
	// ErrInsufficientFunds is returned when the treasury can't cover a batch.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrTransferFailed is returned when some transfer of a batch reported
	// failure.
	ErrTransferFailed = errors.New("transfer failed")
)

// Transfer describes a single movement of an asset from the treasury.
type Transfer struct {
	// Asset to transfer, Native for the native currency.
	Asset util.Uint160
	// Recipient of the transfer.
	To util.Uint160
	// Amount in base units for the native currency and in whole units for
	// tokens.
	Amount *big.Int
	// Details are attached to the transfer as its data.
	Details []byte
}

// IsNative checks whether the transfer moves native currency.
func (t Transfer) IsNative() bool {
	return t.Asset == Native
}

// Transfer kinds by details.
const (
	KindPayday      = "payday"
	KindEscapeHatch = "escape-hatch"
	KindUnknown     = "unknown"
)

// Kind returns the kind of the transfer by its details.
func (t Transfer) Kind() string {
	switch {
	case common.IsPaydayTransfer(t.Details):
		return KindPayday
	case common.IsEscapeHatchTransfer(t.Details):
		return KindEscapeHatch
	default:
		return KindUnknown
	}
}

// Rail is an external payment rail holding the treasury.
type Rail interface {
	// Send makes all the transfers or none of them.
	Send(ctx context.Context, transfers []Transfer) error

	// BalanceOf returns treasury balance of the asset, Native for the
	// native currency.
	BalanceOf(ctx context.Context, asset util.Uint160) (*big.Int, error)
}

// Sweeper is implemented by rails which can't send the whole treasury balance
// as is, for example because transfer fees are paid from it.
type Sweeper interface {
	// Sweepable returns the amount of sweep.Asset the sweep transfer can move
	// in one batch with the given transfers. sweep.Amount is ignored.
	Sweepable(ctx context.Context, sweep Transfer, batch []Transfer) (*big.Int, error)
}
