package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
	"github.com/nspcc-dev/payroll-ledger/rail"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	t *testing.T

	srv     *httptest.Server
	ledger  *payroll.Ledger
	rail    *rail.Memory
	metrics *Metrics
	now     time.Time
	// last signing time, identical requests differ only by it
	signedAt time.Time

	owner, oracle, alice *keys.PrivateKey
}

func newKey(t *testing.T) *keys.PrivateKey {
	k, err := keys.NewPrivateKey()
	require.NoError(t, err)
	return k
}

func newTestEnv(t *testing.T, rateLimit float64, burst int) *testEnv {
	e := &testEnv{
		t:       t,
		rail:    rail.NewMemory(),
		metrics: NewMetrics(),
		now:     time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		owner:   newKey(t),
		oracle:  newKey(t),
		alice:   newKey(t),
	}

	l, err := payroll.Open(storage.NewMemoryStore(), e.rail, payroll.Prm{
		Owner:  e.owner.GetScriptHash(),
		Oracle: e.oracle.GetScriptHash(),
	},
		payroll.WithLogger(zaptest.NewLogger(t)),
		payroll.WithClock(func() time.Time { return e.now }),
		payroll.WithSubscriber(e.metrics.HandleEvent),
	)
	require.NoError(t, err)
	require.NoError(t, e.metrics.WatchLedger(l))
	e.ledger = l

	s, err := New(Prm{
		Ledger:    l,
		Metrics:   e.metrics,
		Logger:    zaptest.NewLogger(t),
		RateLimit: rateLimit,
		RateBurst: burst,
	})
	require.NoError(t, err)

	e.srv = httptest.NewServer(s.Handler())
	t.Cleanup(e.srv.Close)

	return e
}

// do sends the request signed by the key, if any, and returns response code
// and body.
func (e *testEnv) do(method, path string, key *keys.PrivateKey, body any) (int, []byte) {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(e.t, err)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(data))
	require.NoError(e.t, err)
	if key != nil {
		e.sign(req, key, data)
	}

	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	require.NotEmpty(e.t, resp.Header.Get(HeaderRequestID))

	res, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, res
}

func (e *testEnv) sign(req *http.Request, key *keys.PrivateKey, body []byte) {
	at := time.Now()
	if !at.After(e.signedAt.Add(time.Millisecond)) {
		at = e.signedAt.Add(time.Millisecond)
	}
	e.signedAt = at
	SignRequestAt(req, key, body, at)
}

func (e *testEnv) requireCode(expected int, method, path string, key *keys.PrivateKey, body any) []byte {
	code, res := e.do(method, path, key, body)
	require.Equal(e.t, expected, code, "%s %s: %s", method, path, res)
	return res
}

func addr(k *keys.PrivateKey) string {
	return address.Uint160ToString(k.GetScriptHash())
}

func TestSignedRequests(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	body := map[string]any{"address": address.Uint160ToString(util.Uint160{1}), "usd_rate_cents": 1}

	t.Run("unsigned", func(t *testing.T) {
		e.requireCode(http.StatusUnauthorized, http.MethodPost, "/v1/tokens", nil, body)
	})

	t.Run("signature of other body", func(t *testing.T) {
		data, err := json.Marshal(body)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/tokens", bytes.NewReader(data))
		require.NoError(t, err)
		SignRequest(req, e.owner, []byte("{}"))

		resp, err := e.srv.Client().Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed key", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/pause", nil)
		require.NoError(t, err)
		req.Header.Set(HeaderKey, "00")
		req.Header.Set(HeaderSignature, "00")

		resp, err := e.srv.Client().Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong caller", func(t *testing.T) {
		res := e.requireCode(http.StatusForbidden, http.MethodPost, "/v1/tokens", e.alice, body)

		var errResp errorResponse
		require.NoError(t, json.Unmarshal(res, &errResp))
		require.NotEmpty(t, errResp.RequestID)
		require.Contains(t, errResp.Error, "owner")
	})

	e.requireCode(http.StatusCreated, http.MethodPost, "/v1/tokens", e.owner, body)
}

func TestEmployeesAPI(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	token := address.Uint160ToString(util.Uint160{0x7a})
	e.requireCode(http.StatusCreated, http.MethodPost, "/v1/tokens", e.owner, tokenJSON{Address: token, USDRateCents: 100})

	req := addEmployeeRequest{Account: addr(e.alice), AllowedTokens: []string{token}, YearlyUSDCents: 1200}
	res := e.requireCode(http.StatusCreated, http.MethodPost, "/v1/employees", e.owner, req)

	var id idResponse
	require.NoError(t, json.Unmarshal(res, &id))
	require.EqualValues(t, 1, id.ID)

	e.requireCode(http.StatusConflict, http.MethodPost, "/v1/employees", e.owner, req)
	e.requireCode(http.StatusBadRequest, http.MethodPost, "/v1/employees", e.owner,
		addEmployeeRequest{Account: "not an address"})
	e.requireCode(http.StatusNotFound, http.MethodPost, "/v1/employees", e.owner,
		addEmployeeRequest{Account: addr(e.oracle), AllowedTokens: []string{addr(e.owner)}})

	t.Run("get", func(t *testing.T) {
		var emp employeeJSON
		require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/employees/1", nil, nil), &emp))
		require.Equal(t, addr(e.alice), emp.Account)
		require.Equal(t, []string{token}, emp.AllowedTokens)
		require.Equal(t, "12", emp.YearlyUSD)
		require.Equal(t, "ineligible", emp.State)
		require.Nil(t, emp.LastAllocation)

		var byAcc employeeJSON
		require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet,
			"/v1/employees/by-account/"+addr(e.alice), nil, nil), &byAcc))
		require.Equal(t, emp, byAcc)

		e.requireCode(http.StatusNotFound, http.MethodGet, "/v1/employees/by-account/"+addr(e.oracle), nil, nil)
		e.requireCode(http.StatusNotFound, http.MethodGet, "/v1/employees/2", nil, nil)
		e.requireCode(http.StatusBadRequest, http.MethodGet, "/v1/employees/one", nil, nil)
	})

	t.Run("salary", func(t *testing.T) {
		e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/employees/1/salary", e.owner, salaryRequest{YearlyUSDCents: 2400})

		var list []employeeJSON
		require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/employees", nil, nil), &list))
		require.Len(t, list, 1)
		require.EqualValues(t, 2400, list[0].YearlyUSDCents)
	})

	t.Run("remove", func(t *testing.T) {
		e.requireCode(http.StatusForbidden, http.MethodDelete, "/v1/employees/1", e.alice, nil)
		e.requireCode(http.StatusNoContent, http.MethodDelete, "/v1/employees/1", e.owner, nil)
		e.requireCode(http.StatusNotFound, http.MethodGet, "/v1/employees/1", nil, nil)
		e.requireCode(http.StatusNotFound, http.MethodDelete, "/v1/employees/1", e.owner, nil)
	})
}

func TestTokensAPI(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	a := address.Uint160ToString(util.Uint160{0x7a})
	b := address.Uint160ToString(util.Uint160{0x7b})

	e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/tokens/limit", e.owner, limitRequest{Limit: 1})
	e.requireCode(http.StatusCreated, http.MethodPost, "/v1/tokens", e.owner, tokenJSON{Address: a, USDRateCents: 100})
	e.requireCode(http.StatusBadRequest, http.MethodPost, "/v1/tokens", e.owner, tokenJSON{Address: b, USDRateCents: 100})

	e.requireCode(http.StatusForbidden, http.MethodPut, "/v1/rates/"+a, e.owner, rateJSON{USDCents: 5})
	e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/rates/"+a, e.oracle, rateJSON{USDCents: 5})
	e.requireCode(http.StatusNotFound, http.MethodPut, "/v1/rates/"+b, e.oracle, rateJSON{USDCents: 5})

	var tokens []tokenJSON
	require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/tokens", nil, nil), &tokens))
	require.Equal(t, []tokenJSON{{Address: a, USDRateCents: 5}}, tokens)

	e.requireCode(http.StatusNoContent, http.MethodDelete, "/v1/tokens/"+a, e.owner, nil)
	e.requireCode(http.StatusNotFound, http.MethodDelete, "/v1/tokens/"+a, e.owner, nil)

	require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/tokens", nil, nil), &tokens))
	require.Empty(t, tokens)
}

func TestRolesAPI(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/rates/native", e.oracle, rateJSON{USDCents: 100})

	var rate rateJSON
	require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/rates/native", nil, nil), &rate))
	require.EqualValues(t, 100, rate.USDCents)

	e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/oracle", e.owner, addressRequest{Address: addr(e.alice)})
	e.requireCode(http.StatusForbidden, http.MethodPut, "/v1/rates/native", e.oracle, rateJSON{USDCents: 1})
	e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/owner", e.owner, addressRequest{Address: addr(e.alice)})

	var roles rolesJSON
	require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/roles", nil, nil), &roles))
	require.Equal(t, rolesJSON{Owner: addr(e.alice), Oracle: addr(e.alice)}, roles)
}

func TestPaydayAPI(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/rates/native", e.oracle, rateJSON{USDCents: 100})
	e.requireCode(http.StatusCreated, http.MethodPost, "/v1/employees", e.owner,
		addEmployeeRequest{Account: addr(e.alice), YearlyUSDCents: 1200})
	e.rail.Deposit(rail.Native, big.NewInt(5_000_000_000_000_000_000))

	e.requireCode(http.StatusForbidden, http.MethodPost, "/v1/payday", e.oracle, nil)
	e.requireCode(http.StatusTooManyRequests, http.MethodPost, "/v1/payday", e.alice, nil)

	e.now = e.now.Add(payrollconst.PayPeriod + time.Second)

	var slip payslipJSON
	require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodPost, "/v1/payday", e.alice, nil), &slip))
	require.EqualValues(t, 1, slip.EmployeeID)
	require.EqualValues(t, 100, slip.USDCents)
	require.Equal(t, "1", slip.USD)
	require.Equal(t, []transferJSON{{Kind: "payday", Asset: "native", To: addr(e.alice), Amount: "1"}}, slip.Transfers)

	e.requireCode(http.StatusTooManyRequests, http.MethodPost, "/v1/payday", e.alice, nil)

	t.Run("allocation", func(t *testing.T) {
		e.requireCode(http.StatusTooManyRequests, http.MethodPost, "/v1/allocation", e.alice, allocationRequest{})

		e.now = e.now.Add(payrollconst.PayPeriod + time.Second)
		e.requireCode(http.StatusBadRequest, http.MethodPost, "/v1/allocation", e.alice,
			allocationRequest{Allocation: []allocationJSON{{Token: "bad"}}})
		e.requireCode(http.StatusNoContent, http.MethodPost, "/v1/allocation", e.alice, allocationRequest{})
	})

	t.Run("paused", func(t *testing.T) {
		e.now = e.now.Add(payrollconst.PayPeriod + time.Second)

		e.requireCode(http.StatusNoContent, http.MethodPost, "/v1/pause", e.owner, nil)
		e.requireCode(http.StatusServiceUnavailable, http.MethodPost, "/v1/payday", e.alice, nil)
		e.requireCode(http.StatusNoContent, http.MethodPost, "/v1/unpause", e.owner, nil)
		e.requireCode(http.StatusBadRequest, http.MethodPost, "/v1/unpause", e.owner, nil)
		e.requireCode(http.StatusOK, http.MethodPost, "/v1/payday", e.alice, nil)
	})
}

func TestTreasuryAPI(t *testing.T) {
	e := newTestEnv(t, 0, 0)
	token := util.Uint160{0x7a}

	e.requireCode(http.StatusNoContent, http.MethodPut, "/v1/rates/native", e.oracle, rateJSON{USDCents: 100})
	e.requireCode(http.StatusCreated, http.MethodPost, "/v1/tokens", e.owner,
		tokenJSON{Address: address.Uint160ToString(token), USDRateCents: 100})

	e.rail.Deposit(rail.Native, big.NewInt(2_000_000_000_000_000_000))
	e.rail.Deposit(token, big.NewInt(1))

	var tr treasuryJSON
	require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/treasury", nil, nil), &tr))
	require.Equal(t, "3", tr.TotalUSD)
	require.Nil(t, tr.RunwayDays)

	e.requireCode(http.StatusCreated, http.MethodPost, "/v1/employees", e.owner,
		addEmployeeRequest{Account: addr(e.alice), YearlyUSDCents: 36_000})

	// 300 cents at 100 cents a day
	require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/treasury", nil, nil), &tr))
	require.EqualValues(t, 3000, tr.BurnrateUSDCents)
	require.NotNil(t, tr.RunwayDays)
	require.Equal(t, "3", *tr.RunwayDays)

	t.Run("escape hatch", func(t *testing.T) {
		var res escapeHatchResponse
		require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodPost, "/v1/escape-hatch", e.owner, nil), &res))
		require.Len(t, res.Transfers, 2)
		require.Equal(t, transferJSON{Kind: "escape-hatch", Asset: "native", To: addr(e.owner), Amount: "2"}, res.Transfers[0])
		require.Equal(t, "escape-hatch", res.Transfers[1].Kind)

		require.NoError(t, json.Unmarshal(e.requireCode(http.StatusOK, http.MethodGet, "/v1/treasury", nil, nil), &tr))
		require.Equal(t, "0", tr.TotalUSD)
	})
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, 0.001, 2)

	e.requireCode(http.StatusOK, http.MethodGet, "/v1/tokens", nil, nil)
	e.requireCode(http.StatusOK, http.MethodGet, "/v1/tokens", nil, nil)
	e.requireCode(http.StatusTooManyRequests, http.MethodGet, "/v1/tokens", nil, nil)

	// signed requests are limited per verified caller
	e.requireCode(http.StatusNoContent, http.MethodPost, "/v1/pause", e.owner, nil)
	e.requireCode(http.StatusNoContent, http.MethodPost, "/v1/unpause", e.owner, nil)
	e.requireCode(http.StatusTooManyRequests, http.MethodPost, "/v1/pause", e.owner, nil)

	// a claimed key doesn't take the bucket of its owner
	e2 := newTestEnv(t, 0.001, 2)
	for range 2 {
		req, err := http.NewRequest(http.MethodPost, e2.srv.URL+"/v1/pause", nil)
		require.NoError(t, err)
		e2.sign(req, e2.alice, nil)
		req.Header.Set(HeaderKey, hex.EncodeToString(e2.owner.PublicKey().Bytes()))

		resp, err := e2.srv.Client().Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	e2.requireCode(http.StatusNoContent, http.MethodPost, "/v1/pause", e2.owner, nil)

	// failed checks are limited by the host
	e2.requireCode(http.StatusTooManyRequests, http.MethodPost, "/v1/pause", nil, nil)
}

func TestReplayedRequests(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	send := func(req *http.Request) int {
		resp, err := e.srv.Client().Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		return resp.StatusCode
	}
	request := func(path string, at time.Time) *http.Request {
		req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, nil)
		require.NoError(t, err)
		SignRequestAt(req, e.owner, nil, at)
		return req
	}
	requirePaused := func(expected bool) {
		paused, err := e.ledger.Paused()
		require.NoError(t, err)
		require.Equal(t, expected, paused)
	}

	e.requireCode(http.StatusNoContent, http.MethodPost, "/v1/pause", e.owner, nil)

	unpause := request("/v1/unpause", time.Now())
	require.Equal(t, http.StatusNoContent, send(unpause))
	requirePaused(false)

	e.requireCode(http.StatusNoContent, http.MethodPost, "/v1/pause", e.owner, nil)

	replayed := request("/v1/unpause", time.Now())
	replayed.Header = unpause.Header.Clone()
	require.Equal(t, http.StatusUnauthorized, send(replayed))
	requirePaused(true)

	t.Run("stale", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, send(request("/v1/unpause", time.Now().Add(-2*signatureTTL))))
		require.Equal(t, http.StatusUnauthorized, send(request("/v1/unpause", time.Now().Add(2*signatureTTL))))
		requirePaused(true)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		req := request("/v1/unpause", time.Now())
		req.Header.Del(HeaderTimestamp)
		require.Equal(t, http.StatusUnauthorized, send(req))
		requirePaused(true)
	})
}

func TestMetrics(t *testing.T) {
	e := newTestEnv(t, 0, 0)

	e.requireCode(http.StatusCreated, http.MethodPost, "/v1/employees", e.owner,
		addEmployeeRequest{Account: addr(e.alice), YearlyUSDCents: 1200})

	res := string(e.requireCode(http.StatusOK, http.MethodGet, "/metrics", nil, nil))
	for _, line := range []string{
		`payroll_ledger_events_total{event="EmployeeAdded"} 1`,
		`payroll_ledger_employees 1`,
		`payroll_ledger_salaries_usd_cents 1200`,
		`payroll_ledger_paused 0`,
		`payroll_api_requests_total{code="201",route="POST /v1/employees"} 1`,
	} {
		require.True(t, strings.Contains(res, line), "missing %q", line)
	}
}

func TestRun(t *testing.T) {
	l, err := payroll.Open(storage.NewMemoryStore(), rail.NewMemory(), payroll.Prm{Owner: util.Uint160{1}})
	require.NoError(t, err)

	s, err := New(Prm{Address: "127.0.0.1:0", Ledger: l, ShutdownTimeout: time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server didn't stop")
	}
}
