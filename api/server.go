/*
Package api provides JSON over HTTP access to the payroll ledger.

Read requests are public. Mutating requests are made on behalf of the
identity whose key signed them: X-Payroll-Key header carries hex-encoded
compressed public key, X-Payroll-Timestamp carries signing time in Unix
milliseconds and X-Payroll-Signature carries hex-encoded signature of

	METHOD + " " + PATH + "\n" + TIMESTAMP + "\n" + BODY

The caller is the script hash of the key. A signature is accepted once and
only within a minute of its timestamp. See SignRequest.

Public requests are rate limited per remote host, signed ones per verified
caller.
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID is set in every response.
	HeaderRequestID = "X-Request-Id"

	maxBodySize = 1 << 20

	defaultShutdownTimeout = 10 * time.Second
)

// Prm groups parameters of the Server.
type Prm struct {
	// Address to listen on by Run.
	Address string

	Ledger *payroll.Ledger

	// Optional, /metrics is served if set.
	Metrics *Metrics

	Logger *zap.Logger

	// Per-caller requests per second and burst, no limit if not positive.
	RateLimit float64
	RateBurst int

	ShutdownTimeout time.Duration
}

// Server serves the ledger API.
type Server struct {
	log     *zap.Logger
	ledger  *payroll.Ledger
	metrics *Metrics
	limiter *callerLimiter
	replays *replayCache
	now     func() time.Time

	shutdownTimeout time.Duration

	handler http.Handler
	srv     *http.Server
}

// New creates Server.
func New(prm Prm) (*Server, error) {
	if prm.Ledger == nil {
		return nil, errors.New("missing ledger")
	}
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.ShutdownTimeout <= 0 {
		prm.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		log:             prm.Logger,
		ledger:          prm.Ledger,
		metrics:         prm.Metrics,
		limiter:         newCallerLimiter(prm.RateLimit, prm.RateBurst),
		replays:         newReplayCache(replayCacheSize),
		now:             time.Now,
		shutdownTimeout: prm.ShutdownTimeout,
	}

	mux := http.NewServeMux()

	s.route(mux, "GET /v1/employees", s.public(s.listEmployees))
	s.route(mux, "GET /v1/employees/{id}", s.public(s.getEmployee))
	s.route(mux, "GET /v1/employees/by-account/{address}", s.public(s.getEmployeeByAccount))
	s.route(mux, "POST /v1/employees", s.signed(s.addEmployee))
	s.route(mux, "PUT /v1/employees/{id}/salary", s.signed(s.setSalary))
	s.route(mux, "DELETE /v1/employees/{id}", s.signed(s.removeEmployee))

	s.route(mux, "GET /v1/tokens", s.public(s.listTokens))
	s.route(mux, "POST /v1/tokens", s.signed(s.addToken))
	s.route(mux, "DELETE /v1/tokens/{address}", s.signed(s.removeToken))
	s.route(mux, "PUT /v1/tokens/limit", s.signed(s.setTokenLimit))

	s.route(mux, "GET /v1/rates/native", s.public(s.getNativeRate))
	s.route(mux, "PUT /v1/rates/native", s.signed(s.setNativeRate))
	s.route(mux, "PUT /v1/rates/{address}", s.signed(s.setTokenRate))

	s.route(mux, "GET /v1/roles", s.public(s.getRoles))
	s.route(mux, "PUT /v1/oracle", s.signed(s.setOracle))
	s.route(mux, "PUT /v1/owner", s.signed(s.transferOwnership))

	s.route(mux, "POST /v1/allocation", s.signed(s.determineAllocation))
	s.route(mux, "POST /v1/payday", s.signed(s.payday))

	s.route(mux, "GET /v1/treasury", s.public(s.getTreasury))

	s.route(mux, "POST /v1/pause", s.signed(s.pause))
	s.route(mux, "POST /v1/unpause", s.signed(s.unpause))
	s.route(mux, "POST /v1/escape-hatch", s.signed(s.escapeHatch))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.handler = mux
	s.srv = &http.Server{
		Addr:              prm.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves the API until the context is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving API", zap.String("address", s.srv.Addr))
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown API server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

type ctxKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// route registers the handler wrapped with request ID and metrics.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := s.now()

		id := uuid.NewString()
		w.Header().Set(HeaderRequestID, id)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		h(rec, r)

		s.metrics.observeRequest(pattern, rec.code, s.now().Sub(start))
		s.log.Debug("request served",
			zap.String("request", id),
			zap.String("route", pattern),
			zap.Int("code", rec.code))
	})
}

var errRateLimited = errors.New("rate limit exceeded")

// public limits the handler by the remote host.
func (s *Server) public(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(hostKey(r), s.now()) {
			s.writeError(w, r, http.StatusTooManyRequests, errRateLimited)
			return
		}
		h(w, r)
	}
}
