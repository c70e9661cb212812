package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
	"github.com/nspcc-dev/payroll-ledger/rail"
	"go.uber.org/zap"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type tokenJSON struct {
	Address      string `json:"address"`
	USDRateCents uint64 `json:"usd_rate_cents"`
}

type allocationJSON struct {
	Token      string `json:"token"`
	Percentage uint32 `json:"percentage"`
}

type employeeJSON struct {
	ID             uint64           `json:"id"`
	Account        string           `json:"account"`
	AllowedTokens  []string         `json:"allowed_tokens"`
	YearlyUSDCents uint64           `json:"yearly_usd_cents"`
	YearlyUSD      string           `json:"yearly_usd"`
	LastPayout     time.Time        `json:"last_payout"`
	LastAllocation *time.Time       `json:"last_allocation,omitempty"`
	Allocation     []allocationJSON `json:"allocation"`
	State          string           `json:"state,omitempty"`
}

type transferJSON struct {
	Kind   string `json:"kind"`
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type payslipJSON struct {
	ID         string         `json:"id"`
	EmployeeID uint64         `json:"employee_id"`
	Account    string         `json:"account"`
	USDCents   uint64         `json:"usd_cents"`
	USD        string         `json:"usd"`
	Transfers  []transferJSON `json:"transfers"`
	At         time.Time      `json:"at"`
}

type treasuryJSON struct {
	TotalUSD         string  `json:"total_usd"`
	NativeRateCents  uint64  `json:"native_rate_usd_cents"`
	SalariesUSDCents uint64  `json:"salaries_usd_cents"`
	BurnrateUSDCents uint64  `json:"burnrate_usd_cents"`
	RunwayDays       *string `json:"runway_days,omitempty"`
}

func addresses(list []util.Uint160) []string {
	res := make([]string, len(list))
	for i := range list {
		res[i] = address.Uint160ToString(list[i])
	}
	return res
}

func parseAddress(s string) (util.Uint160, error) {
	h, err := address.StringToUint160(s)
	if err != nil {
		return h, fmt.Errorf("%w: invalid address %q: %w", errBadRequest, s, err)
	}
	return h, nil
}

func parseAddresses(list []string) ([]util.Uint160, error) {
	res := make([]util.Uint160, len(list))
	for i := range list {
		var err error
		if res[i], err = parseAddress(list[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// usd formats fixed point cents with the given decimals as dollars.
func usd(cents *big.Int, decimals int) string {
	whole := new(big.Int).Quo(cents, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return fixedn.ToString(whole, 2)
}

func newEmployeeJSON(e payroll.Employee) employeeJSON {
	res := employeeJSON{
		ID:             e.ID,
		Account:        address.Uint160ToString(e.Account),
		AllowedTokens:  addresses(e.AllowedTokens),
		YearlyUSDCents: e.YearlyUSDCents,
		YearlyUSD:      usd(new(big.Int).SetUint64(e.YearlyUSDCents), 0),
		LastPayout:     e.LastPayout,
		Allocation:     make([]allocationJSON, len(e.TokenAllocated)),
	}
	if !e.LastAllocation.IsZero() {
		t := e.LastAllocation
		res.LastAllocation = &t
	}
	for i := range e.TokenAllocated {
		res.Allocation[i] = allocationJSON{
			Token:      address.Uint160ToString(e.TokenAllocated[i]),
			Percentage: e.TokenAllocation[i],
		}
	}
	return res
}

func newPayslipJSON(p payroll.Payslip) payslipJSON {
	res := payslipJSON{
		ID:         p.ID,
		EmployeeID: p.EmployeeID,
		Account:    address.Uint160ToString(p.Account),
		USDCents:   p.USDCents,
		USD:        usd(new(big.Int).SetUint64(p.USDCents), 0),
		Transfers:  make([]transferJSON, len(p.Transfers)),
		At:         p.At,
	}
	for i := range p.Transfers {
		res.Transfers[i] = newTransferJSON(p.Transfers[i])
	}
	return res
}

func newTransferJSON(t rail.Transfer) transferJSON {
	res := transferJSON{
		Kind:   t.Kind(),
		Asset:  "native",
		To:     address.Uint160ToString(t.To),
		Amount: t.Amount.String(),
	}
	if t.IsNative() {
		res.Amount = fixedn.ToString(t.Amount, payrollconst.NativeDecimals)
	} else {
		res.Asset = address.Uint160ToString(t.Asset)
	}
	return res
}

// statusOf maps ledger errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, payroll.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, payroll.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payroll.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, payroll.ErrLimitExceeded),
		errors.Is(err, payroll.ErrInvalidArgument),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, payroll.ErrCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, payroll.ErrPaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("failed to write response",
			zap.String("request", requestID(r.Context())), zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	id := requestID(r.Context())
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		s.log.Error("request failed", zap.String("request", id), zap.Error(err))
	} else {
		s.log.Debug("request rejected", zap.String("request", id), zap.Int("code", code), zap.Error(err))
	}
	s.writeJSON(w, r, code, errorResponse{Error: err.Error(), RequestID: id})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, statusOf(err), err)
}

func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}
