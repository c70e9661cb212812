package payroll

import "github.com/nspcc-dev/neo-go/pkg/util"

// Notification names, see package documentation for the fields set by each
// of them.
const (
	EventOwnershipTransferred = "OwnershipTransferred"
	EventOracleChanged        = "OracleChanged"
	EventExchangeRateChanged  = "ExchangeRateChanged"
	EventTokenAdded           = "TokenAdded"
	EventTokenRemoved         = "TokenRemoved"
	EventTokenLimitChanged    = "TokenLimitChanged"
	EventEmployeeAdded        = "EmployeeAdded"
	EventSalaryChanged        = "SalaryChanged"
	EventEmployeeRemoved      = "EmployeeRemoved"
	EventAllocationChanged    = "AllocationChanged"
	EventPayday               = "Payday"
	EventPaused               = "Paused"
	EventUnpaused             = "Unpaused"
	EventEscapeHatch          = "EscapeHatch"
)

// Event describes a committed ledger change.
type Event struct {
	Name string

	EmployeeID uint64
	Account    util.Uint160
	Value      uint64

	// Set for EventPayday only.
	Payslip *Payslip
}
