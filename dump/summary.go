package dump

import (
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/payroll-ledger/payroll"
)

// Summary is a human-readable digest of the ledger state.
type Summary struct {
	Owner           string `json:"owner"`
	Oracle          string `json:"oracle"`
	Paused          bool   `json:"paused"`
	NativeRateCents uint64 `json:"native_rate_usd_cents"`

	TokenLimit uint64         `json:"token_limit"`
	Tokens     []SummaryToken `json:"tokens"`

	EmployeeCount    uint64 `json:"employee_count"`
	SalariesUSDCents uint64 `json:"salaries_usd_cents"`
}

// SummaryToken describes accepted token.
type SummaryToken struct {
	Address      string `json:"address"`
	USDRateCents uint64 `json:"usd_rate_cents"`
}

// NewSummary reads the summary from the ledger.
func NewSummary(l *payroll.Ledger) (Summary, error) {
	var (
		res Summary
		err error
	)

	owner, err := l.Owner()
	if err != nil {
		return res, err
	}
	oracle, err := l.Oracle()
	if err != nil {
		return res, err
	}
	res.Owner = address.Uint160ToString(owner)
	res.Oracle = address.Uint160ToString(oracle)

	if res.Paused, err = l.Paused(); err != nil {
		return res, err
	}
	if res.NativeRateCents, err = l.NativeExchangeRate(); err != nil {
		return res, err
	}
	if res.TokenLimit, err = l.TokenLimit(); err != nil {
		return res, err
	}

	tokens, err := l.Tokens()
	if err != nil {
		return res, err
	}
	res.Tokens = make([]SummaryToken, len(tokens))
	for i := range tokens {
		res.Tokens[i] = SummaryToken{
			Address:      address.Uint160ToString(tokens[i].Address),
			USDRateCents: tokens[i].USDRateCents,
		}
	}

	if res.EmployeeCount, err = l.EmployeeCount(); err != nil {
		return res, err
	}
	if res.SalariesUSDCents, err = l.SalariesSummationUSDCents(); err != nil {
		return res, err
	}

	return res, nil
}
