/*
Package payroll implements the payroll ledger.

The ledger keeps employees with yearly salaries in USD cents, a bounded set
of accepted payment tokens with exchange rates supplied by the oracle, and
pays monthly salaries from the treasury held by the payment rail in a mix of
tokens and native currency.

Ledger state lives in a neo-go storage. Each mutating method works on a cached
layer over it and persists the layer only when the method succeeds, so a
failed method, a failed payment included, leaves no trace in the state.

# Roles

Owner manages tokens and employees, sets the oracle, pauses the ledger and
uses the escape hatch. Oracle sets exchange rates. Employees choose how their
pay is split between tokens and claim it once per pay period.

# Amounts

Exchange rates are USD cents per one whole unit of an asset. Native currency
amounts are in base units, 10^18 per whole unit. Token amounts are whole
units. Treasury value is reported with 18 decimal places.

# Notifications

Every committed change produces an Event delivered to subscribers registered
with WithSubscriber.

	OwnershipTransferred: Account is the new owner.
	OracleChanged:        Account is the new oracle.
	ExchangeRateChanged:  Account is the token (zero for native currency),
	                      Value is the new rate.
	TokenAdded:           Account is the token, Value is its rate.
	TokenRemoved:         Account is the token.
	TokenLimitChanged:    Value is the new limit.
	EmployeeAdded:        EmployeeID, Account, Value is the yearly salary.
	SalaryChanged:        EmployeeID, Account, Value is the yearly salary.
	EmployeeRemoved:      EmployeeID, Account.
	AllocationChanged:    EmployeeID, Account, Value is the allocated percentage.
	Payday:               EmployeeID, Account, Value is the monthly pay,
	                      Payslip.
	Paused, Unpaused:     Account is the owner.
	EscapeHatch:          Account is the owner, Value is the number of
	                      transfers made.
*/
package payroll
