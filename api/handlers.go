package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/payroll"
)

// mutation handles a signed request. Its result is written with the returned
// status code.
type mutation func(ctx context.Context, caller util.Uint160, r *http.Request, body []byte) (any, int, error)

func (s *Server) signed(h mutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
			return
		}

		now := s.now()

		sig, err := verifyRequest(r, body, now)
		if err != nil {
			if !s.limiter.allow(hostKey(r), now) {
				s.writeError(w, r, http.StatusTooManyRequests, errRateLimited)
				return
			}
			s.writeError(w, r, http.StatusUnauthorized, err)
			return
		}

		if !s.limiter.allow(callerKey(sig.caller), now) {
			s.writeError(w, r, http.StatusTooManyRequests, errRateLimited)
			return
		}

		if err := s.replays.use(sig, now); err != nil {
			code := http.StatusUnauthorized
			if errors.Is(err, errBusy) {
				code = http.StatusServiceUnavailable
			}
			s.writeError(w, r, code, err)
			return
		}

		res, code, err := h(r.Context(), sig.caller, r, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.writeJSON(w, r, code, res)
	}
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid employee ID: %w", errBadRequest, err)
	}
	return id, nil
}

// employees.

func (s *Server) employeeWithState(e payroll.Employee) (employeeJSON, error) {
	res := newEmployeeJSON(e)

	st, err := s.ledger.EmployeeState(e.ID)
	if err != nil {
		return res, err
	}
	res.State = st.String()
	return res, nil
}

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := s.ledger.Employees()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res := make([]employeeJSON, 0, len(employees))
	for i := range employees {
		e, err := s.employeeWithState(employees[i])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		res = append(res, e)
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeEmployee(w, r, id)
}

func (s *Server) getEmployeeByAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := parseAddress(r.PathValue("address"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id, err := s.ledger.EmployeeID(acc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if id == 0 {
		s.fail(w, r, fmt.Errorf("%w: no employee with account %s", payroll.ErrNotFound, address.Uint160ToString(acc)))
		return
	}
	s.writeEmployee(w, r, id)
}

func (s *Server) writeEmployee(w http.ResponseWriter, r *http.Request, id uint64) {
	e, err := s.ledger.Employee(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.employeeWithState(e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

type addEmployeeRequest struct {
	Account        string   `json:"account"`
	AllowedTokens  []string `json:"allowed_tokens"`
	YearlyUSDCents uint64   `json:"yearly_usd_cents"`
}

type idResponse struct {
	ID uint64 `json:"id"`
}

func (s *Server) addEmployee(ctx context.Context, caller util.Uint160, _ *http.Request, body []byte) (any, int, error) {
	var req addEmployeeRequest
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}

	acc, err := parseAddress(req.Account)
	if err != nil {
		return nil, 0, err
	}
	allowed, err := parseAddresses(req.AllowedTokens)
	if err != nil {
		return nil, 0, err
	}

	id, err := s.ledger.AddEmployee(ctx, caller, acc, allowed, req.YearlyUSDCents)
	if err != nil {
		return nil, 0, err
	}
	return idResponse{ID: id}, http.StatusCreated, nil
}

type salaryRequest struct {
	YearlyUSDCents uint64 `json:"yearly_usd_cents"`
}

func (s *Server) setSalary(ctx context.Context, caller util.Uint160, r *http.Request, body []byte) (any, int, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, 0, err
	}

	var req salaryRequest
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}

	return nil, http.StatusNoContent, s.ledger.SetEmployeeSalary(ctx, caller, id, req.YearlyUSDCents)
}

func (s *Server) removeEmployee(ctx context.Context, caller util.Uint160, r *http.Request, _ []byte) (any, int, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, s.ledger.RemoveEmployee(ctx, caller, id)
}

// tokens.

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.ledger.Tokens()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res := make([]tokenJSON, len(tokens))
	for i := range tokens {
		res[i] = tokenJSON{
			Address:      address.Uint160ToString(tokens[i].Address),
			USDRateCents: tokens[i].USDRateCents,
		}
	}
	s.writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) addToken(ctx context.Context, caller util.Uint160, _ *http.Request, body []byte) (any, int, error) {
	var req tokenJSON
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}

	token, err := parseAddress(req.Address)
	if err != nil {
		return nil, 0, err
	}

	return nil, http.StatusCreated, s.ledger.AddToken(ctx, caller, token, req.USDRateCents)
}

func (s *Server) removeToken(ctx context.Context, caller util.Uint160, r *http.Request, _ []byte) (any, int, error) {
	token, err := parseAddress(r.PathValue("address"))
	if err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, s.ledger.RemoveToken(ctx, caller, token)
}

type limitRequest struct {
	Limit uint64 `json:"limit"`
}

func (s *Server) setTokenLimit(ctx context.Context, caller util.Uint160, _ *http.Request, body []byte) (any, int, error) {
	var req limitRequest
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, s.ledger.SetTokenLimit(ctx, caller, req.Limit)
}

// rates.

type rateJSON struct {
	USDCents uint64 `json:"usd_cents"`
}

func (s *Server) getNativeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := s.ledger.NativeExchangeRate()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rateJSON{USDCents: rate})
}

func (s *Server) setNativeRate(ctx context.Context, caller util.Uint160, _ *http.Request, body []byte) (any, int, error) {
	var req rateJSON
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, s.ledger.SetNativeExchangeRate(ctx, caller, req.USDCents)
}

func (s *Server) setTokenRate(ctx context.Context, caller util.Uint160, r *http.Request, body []byte) (any, int, error) {
	token, err := parseAddress(r.PathValue("address"))
	if err != nil {
		return nil, 0, err
	}

	var req rateJSON
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, s.ledger.SetExchangeRate(ctx, caller, token, req.USDCents)
}

// roles.

type rolesJSON struct {
	Owner  string `json:"owner"`
	Oracle string `json:"oracle"`
	Paused bool   `json:"paused"`
}

type addressRequest struct {
	Address string `json:"address"`
}

func (s *Server) getRoles(w http.ResponseWriter, r *http.Request) {
	owner, err := s.ledger.Owner()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	oracle, err := s.ledger.Oracle()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	paused, err := s.ledger.Paused()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, rolesJSON{
		Owner:  address.Uint160ToString(owner),
		Oracle: address.Uint160ToString(oracle),
		Paused: paused,
	})
}

func (s *Server) setOracle(ctx context.Context, caller util.Uint160, _ *http.Request, body []byte) (any, int, error) {
	var req addressRequest
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}

	oracle, err := parseAddress(req.Address)
	if err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, s.ledger.SetOracle(ctx, caller, oracle)
}

func (s *Server) transferOwnership(ctx context.Context, caller util.Uint160, _ *http.Request, body []byte) (any, int, error) {
	var req addressRequest
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}

	owner, err := parseAddress(req.Address)
	if err != nil {
		return nil, 0, err
	}
	return nil, http.StatusNoContent, s.ledger.TransferOwnership(ctx, caller, owner)
}

// payments.

type allocationRequest struct {
	Allocation []allocationJSON `json:"allocation"`
}

func (s *Server) determineAllocation(ctx context.Context, caller util.Uint160, _ *http.Request, body []byte) (any, int, error) {
	var req allocationRequest
	if err := decodeJSON(body, &req); err != nil {
		return nil, 0, err
	}

	var (
		tokens      = make([]util.Uint160, len(req.Allocation))
		percentages = make([]uint32, len(req.Allocation))
	)
	for i := range req.Allocation {
		var err error
		if tokens[i], err = parseAddress(req.Allocation[i].Token); err != nil {
			return nil, 0, err
		}
		percentages[i] = req.Allocation[i].Percentage
	}

	return nil, http.StatusNoContent, s.ledger.DetermineAllocation(ctx, caller, tokens, percentages)
}

func (s *Server) payday(ctx context.Context, caller util.Uint160, _ *http.Request, _ []byte) (any, int, error) {
	slip, err := s.ledger.Payday(ctx, caller)
	if err != nil {
		return nil, 0, err
	}
	return newPayslipJSON(slip), http.StatusOK, nil
}

func (s *Server) getTreasury(w http.ResponseWriter, r *http.Request) {
	total, decimals, err := s.ledger.TotalBalanceInUSDCents(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rate, err := s.ledger.NativeExchangeRate()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	salaries, err := s.ledger.SalariesSummationUSDCents()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	burn, err := s.ledger.PayrollBurnrate()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res := treasuryJSON{
		TotalUSD:         usd(total, decimals),
		NativeRateCents:  rate,
		SalariesUSDCents: salaries,
		BurnrateUSDCents: burn,
	}

	runway, err := s.ledger.PayrollRunway(r.Context())
	switch {
	case err == nil:
		days := runway.String()
		res.RunwayDays = &days
	case errors.Is(err, payroll.ErrNotFound), errors.Is(err, payroll.ErrInvalidArgument):
		// no burn rate, runway is unbounded
	default:
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, res)
}

// control.

func (s *Server) pause(ctx context.Context, caller util.Uint160, _ *http.Request, _ []byte) (any, int, error) {
	return nil, http.StatusNoContent, s.ledger.Pause(ctx, caller)
}

func (s *Server) unpause(ctx context.Context, caller util.Uint160, _ *http.Request, _ []byte) (any, int, error) {
	return nil, http.StatusNoContent, s.ledger.Unpause(ctx, caller)
}

type escapeHatchResponse struct {
	Transfers []transferJSON `json:"transfers"`
}

func (s *Server) escapeHatch(ctx context.Context, caller util.Uint160, _ *http.Request, _ []byte) (any, int, error) {
	transfers, err := s.ledger.EscapeHatch(ctx, caller)
	if err != nil {
		return nil, 0, err
	}

	res := escapeHatchResponse{Transfers: make([]transferJSON, len(transfers))}
	for i := range transfers {
		res.Transfers[i] = newTransferJSON(transfers[i])
	}
	return res, http.StatusOK, nil
}
