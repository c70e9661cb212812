package payroll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
	"github.com/nspcc-dev/payroll-ledger/payroll/payrollconst"
	"github.com/nspcc-dev/payroll-ledger/rail"
	"go.uber.org/zap"
)

// CooldownPolicy defines how allocation changes and paydays are rate-limited.
type CooldownPolicy int

const (
	// SharedCooldown makes allocation changes and paydays share a single pay
	// period window: each of them consumes the window and is blocked by the
	// other one until the period elapses.
	SharedCooldown CooldownPolicy = iota
	// SeparateCooldown rate-limits allocation changes and paydays
	// independently, one per pay period each.
	SeparateCooldown
)

// String implements fmt.Stringer.
func (p CooldownPolicy) String() string {
	switch p {
	case SharedCooldown:
		return "shared"
	case SeparateCooldown:
		return "separate"
	default:
		return "unknown"
	}
}

// ParseCooldownPolicy parses policy name returned by CooldownPolicy.String.
func ParseCooldownPolicy(s string) (CooldownPolicy, error) {
	switch s {
	case "", "shared":
		return SharedCooldown, nil
	case "separate":
		return SeparateCooldown, nil
	default:
		return 0, fmt.Errorf("unknown cooldown policy %q", s)
	}
}

// Prm groups initial parameters of the ledger. They are used only when the
// ledger is opened on an empty storage.
type Prm struct {
	// Owner administers the ledger. Required.
	Owner util.Uint160

	// Oracle updates exchange rates. Defaults to Owner.
	Oracle util.Uint160

	// TokenLimit is the maximum number of accepted tokens. Defaults to
	// payrollconst.DefaultTokenLimit.
	TokenLimit uint64
}

// Option configures Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. Nop logger is used by default.
func WithLogger(l *zap.Logger) Option {
	return func(x *Ledger) { x.log = l }
}

// WithClock sets the source of current time. time.Now is used by default.
func WithClock(now func() time.Time) Option {
	return func(x *Ledger) { x.now = now }
}

// WithCooldownPolicy sets the cooldown policy, SharedCooldown by default.
func WithCooldownPolicy(p CooldownPolicy) Option {
	return func(x *Ledger) { x.policy = p }
}

// WithPayPeriod overrides payrollconst.PayPeriod.
func WithPayPeriod(d time.Duration) Option {
	return func(x *Ledger) { x.period = d }
}

// WithSubscriber adds a function receiving events of every committed change.
// Subscribers are called one at a time in commit order, after the ledger lock
// is released, so they may read the ledger. They must not call its mutating
// methods.
func WithSubscriber(f func(Event)) Option {
	return func(x *Ledger) { x.subs = append(x.subs, f) }
}

// Ledger is a payroll ledger. Every mutating method is executed as an
// indivisible unit: its changes are either committed all at once or
// discarded.
//
// Ledger is safe for concurrent use. Rail implementations must not call back
// into the Ledger while sending transfers.
type Ledger struct {
	mu sync.Mutex
	// held while events are delivered, taken before mu is released
	notifyMu sync.Mutex

	store storage.Store
	rail  rail.Rail

	log    *zap.Logger
	now    func() time.Time
	policy CooldownPolicy
	period time.Duration
	subs   []func(Event)
}

// Open returns Ledger working with the given storage and payment rail. Empty
// storage is initialized with the Prm, otherwise the Prm is ignored and the
// storage version is checked.
func Open(store storage.Store, r rail.Rail, prm Prm, opts ...Option) (*Ledger, error) {
	return open(store, r, &prm, opts)
}

// Load is like Open, but it never writes to the storage. It returns
// ErrNotInitialized if the storage holds no ledger.
func Load(store storage.Store, r rail.Rail, opts ...Option) (*Ledger, error) {
	return open(store, r, nil, opts)
}

func open(store storage.Store, r rail.Rail, prm *Prm, opts []Option) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		rail:   r,
		log:    zap.NewNop(),
		now:    time.Now,
		policy: SharedCooldown,
		period: payrollconst.PayPeriod,
	}
	for _, o := range opts {
		o(l)
	}

	tx := storage.NewMemCachedStore(store)
	st := &state{s: tx}

	version, err := st.uint64(versionKey)
	if err != nil {
		return nil, fmt.Errorf("read storage version: %w", err)
	}

	if version != 0 {
		if err := common.CheckVersion(int(version)); err != nil {
			return nil, err
		}

		owner, err := st.owner()
		if err != nil {
			return nil, fmt.Errorf("read owner: %w", err)
		}
		if prm != nil && prm.Owner != (util.Uint160{}) && !prm.Owner.Equals(owner) {
			l.log.Warn("configured owner differs from the stored one, stored is used",
				zap.Stringer("stored", owner), zap.Stringer("configured", prm.Owner))
		}

		l.log.Info("payroll ledger opened", zap.Uint64("version", version))
		return l, nil
	}

	if prm == nil {
		return nil, ErrNotInitialized
	}
	if prm.Owner == (util.Uint160{}) {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidArgument)
	}
	if prm.Oracle == (util.Uint160{}) {
		prm.Oracle = prm.Owner
	}
	if prm.TokenLimit == 0 {
		prm.TokenLimit = payrollconst.DefaultTokenLimit
	}

	st.putHash(ownerKey, prm.Owner)
	st.putHash(oracleKey, prm.Oracle)
	st.putUint64(tokenLimitKey, prm.TokenLimit)
	st.putUint64(versionKey, common.Version)

	if _, err := tx.PersistSync(); err != nil {
		return nil, fmt.Errorf("persist initial state: %w", err)
	}

	l.log.Info("payroll ledger initialized",
		zap.Stringer("owner", prm.Owner),
		zap.Stringer("oracle", prm.Oracle),
		zap.Uint64("token limit", prm.TokenLimit))

	return l, nil
}

// view runs f against the committed state.
func (l *Ledger) view(f func(s *state) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return f(&state{s: storage.NewMemCachedStore(l.store)})
}

// update runs f in a transaction. Changes made by f are committed only if it
// returns no error. Transfers queued by f are sent after the commit, and the
// changes are reverted if the rail fails, so a crash between the two never
// leaves paid transfers uncommitted. Events returned by f are sent to
// subscribers once everything succeeds.
func (l *Ledger) update(ctx context.Context, method string, f func(s *state) ([]Event, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()

	st := &state{s: storage.NewMemCachedStore(l.store)}
	events, err := f(st)
	if err == nil {
		err = l.commit(ctx, method, st)
	}

	if err != nil {
		l.mu.Unlock()
		l.log.Debug("invocation aborted", zap.String("method", method), zap.Error(err))
		return err
	}

	l.notifyMu.Lock()
	l.mu.Unlock()

	for i := range events {
		l.notify(events[i])
	}
	l.notifyMu.Unlock()

	return nil
}

// commit persists the changes and sends queued transfers.
func (l *Ledger) commit(ctx context.Context, method string, st *state) error {
	var undo *storage.MemCachedStore
	if len(st.transfers) > 0 {
		var err error
		if undo, err = l.undoOf(st.s); err != nil {
			return fmt.Errorf("prepare rollback: %w", err)
		}
	}

	if _, err := st.s.PersistSync(); err != nil {
		err = fmt.Errorf("persist changes: %w", err)
		l.log.Error("failed to commit changes", zap.String("method", method), zap.Error(err))
		return err
	}

	if len(st.transfers) == 0 {
		return nil
	}

	sendErr := l.send(ctx, st.transfers)
	if sendErr == nil {
		return nil
	}

	if _, err := undo.PersistSync(); err != nil {
		l.log.Error("failed to roll back changes of the failed transfers, they stay committed",
			zap.String("method", method),
			zap.NamedError("transfer error", sendErr),
			zap.Error(err))
		return fmt.Errorf("%w (rollback failed: %v)", sendErr, err)
	}

	return sendErr
}

// undoOf returns the changes restoring items modified by tx.
func (l *Ledger) undoOf(tx *storage.MemCachedStore) (*storage.MemCachedStore, error) {
	var (
		b    = tx.GetBatch()
		undo = storage.NewMemCachedStore(l.store)
	)

	restore := func(kv storage.KeyValueExists) error {
		if !kv.Exists {
			undo.Delete(kv.Key)
			return nil
		}
		v, err := l.store.Get(kv.Key)
		if err != nil {
			return err
		}
		undo.Put(kv.Key, v)
		return nil
	}

	for _, kv := range b.Put {
		if err := restore(kv); err != nil {
			return nil, err
		}
	}
	for _, kv := range b.Deleted {
		if err := restore(kv); err != nil {
			return nil, err
		}
	}
	return undo, nil
}

func (l *Ledger) notify(ev Event) {
	l.log.Info("notification",
		zap.String("name", ev.Name),
		zap.Uint64("employee", ev.EmployeeID),
		zap.Stringer("account", ev.Account),
		zap.Uint64("value", ev.Value))

	for _, f := range l.subs {
		f(ev)
	}
}

// send transfers via the rail wrapping failures into ErrTransferFailed.
func (l *Ledger) send(ctx context.Context, transfers []rail.Transfer) error {
	err := l.rail.Send(ctx, transfers)
	if err != nil {
		if errors.Is(err, ErrTransferFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// Owner returns the ledger owner.
func (l *Ledger) Owner() (util.Uint160, error) {
	var res util.Uint160
	err := l.view(func(s *state) (err error) {
		res, err = s.owner()
		return
	})
	return res, err
}

// TransferOwnership passes ledger administration to a new owner. It can be
// invoked only by the current owner.
func (l *Ledger) TransferOwnership(ctx context.Context, caller, newOwner util.Uint160) error {
	return l.update(ctx, "transferOwnership", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if newOwner == (util.Uint160{}) {
			return nil, fmt.Errorf("%w: empty owner", ErrInvalidArgument)
		}

		s.putHash(ownerKey, newOwner)

		return []Event{{Name: EventOwnershipTransferred, Account: newOwner}}, nil
	})
}
