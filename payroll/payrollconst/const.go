package payrollconst

import "time"

const (
	// DefaultTokenLimit is the number of tokens that can be accepted by the
	// ledger unless the owner sets another limit.
	DefaultTokenLimit = 20

	// PayPeriod is the minimal interval between two paydays of an employee.
	PayPeriod = 30 * 24 * time.Hour

	// MonthsPerYear divides yearly salaries into monthly payments.
	MonthsPerYear = 12

	// DaysPerMonth is used to turn monthly burn rate into a daily one.
	DaysPerMonth = 30

	// MaxPercentage is the upper bound of the allocation sum.
	MaxPercentage = 100

	// NativeDecimals is the number of decimal places of native currency base
	// units and of treasury USD cent totals.
	NativeDecimals = 18
)
