package payroll

import (
	"errors"
	"fmt"
	"math"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
	"github.com/nspcc-dev/payroll-ledger/rail"
)

// Storage layout. Single-byte keys hold scalars, prefixed keys hold records.
const (
	versionKey       = 'v'
	ownerKey         = 'o'
	oracleKey        = 'r'
	pausedKey        = 'p'
	nativeRateKey    = 'n'
	tokenLimitKey    = 'l'
	tokenCountKey    = 'c'
	lastEmployeeKey  = 'i'
	employeeCountKey = 'k'
	salariesKey      = 's'

	// slot -> Token
	tokenPrefix = 't'
	// token address -> slot+1
	tokenIndexPrefix = 'T'
	// id -> Employee
	employeePrefix = 'e'
	// account -> id
	employeeIndexPrefix = 'E'
)

// Prefixes lists all the key prefixes used by the ledger storage.
var Prefixes = []byte{
	versionKey, ownerKey, oracleKey, pausedKey, nativeRateKey,
	tokenLimitKey, tokenCountKey, lastEmployeeKey, employeeCountKey, salariesKey,
	tokenPrefix, tokenIndexPrefix, employeePrefix, employeeIndexPrefix,
}

// state provides typed access to the ledger storage. All writes go to the
// underlying cached store and reach the persistent one only when the ledger
// commits them.
type state struct {
	s *storage.MemCachedStore

	// sent by the ledger after the changes are persisted
	transfers []rail.Transfer
}

// queue schedules transfers to be made when the changes are committed.
func (s *state) queue(transfers ...rail.Transfer) {
	s.transfers = append(s.transfers, transfers...)
}

func (s *state) uint64(key byte) (uint64, error) {
	return common.GetUint64(s.s, common.Key(key))
}

func (s *state) putUint64(key byte, v uint64) {
	common.PutUint64(s.s, common.Key(key), v)
}

func (s *state) hash(key byte) (util.Uint160, error) {
	var res util.Uint160

	data, err := s.s.Get(common.Key(key))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return res, nil
		}
		return res, err
	}

	res, err = util.Uint160DecodeBytesBE(data)
	if err != nil {
		return res, fmt.Errorf("decode %q item: %w", key, err)
	}
	return res, nil
}

func (s *state) putHash(key byte, h util.Uint160) {
	s.s.Put(common.Key(key), h.BytesBE())
}

func (s *state) owner() (util.Uint160, error)  { return s.hash(ownerKey) }
func (s *state) oracle() (util.Uint160, error) { return s.hash(oracleKey) }

func (s *state) checkOwner(caller util.Uint160) error {
	owner, err := s.owner()
	if err != nil {
		return err
	}
	return common.CheckOwnerWitness(owner, caller)
}

func (s *state) checkOracle(caller util.Uint160) error {
	oracle, err := s.oracle()
	if err != nil {
		return err
	}
	return common.CheckOracleWitness(oracle, caller)
}

func (s *state) paused() (bool, error) {
	v, err := s.uint64(pausedKey)
	return v != 0, err
}

func (s *state) setPaused(p bool) {
	var v uint64
	if p {
		v = 1
	}
	s.putUint64(pausedKey, v)
}

func (s *state) checkNotPaused() error {
	p, err := s.paused()
	if err != nil {
		return err
	}
	if p {
		return ErrPaused
	}
	return nil
}

// tokens.

func (s *state) tokenCount() (uint64, error) { return s.uint64(tokenCountKey) }

func (s *state) tokenLimit() (uint64, error) { return s.uint64(tokenLimitKey) }

func (s *state) tokenSlot(addr util.Uint160) (uint64, bool, error) {
	count, err := s.tokenCount()
	if err != nil || count == 0 {
		// a stale index of an empty registry is never a match
		return 0, false, err
	}

	v, err := common.GetUint64(s.s, common.Key(tokenIndexPrefix, addr.BytesBE()))
	if err != nil || v == 0 {
		return 0, false, err
	}
	return v - 1, true, nil
}

func (s *state) tokenAt(slot uint64) (Token, error) {
	var t Token

	ok, err := common.GetSerialized(s.s, common.Key(tokenPrefix, common.Uint64Key(slot)), &t)
	if err != nil {
		return t, fmt.Errorf("token slot %d: %w", slot, err)
	}
	if !ok {
		return t, fmt.Errorf("missing token slot %d", slot)
	}
	return t, nil
}

func (s *state) putTokenAt(slot uint64, t Token) error {
	err := common.SetSerialized(s.s, common.Key(tokenPrefix, common.Uint64Key(slot)), &t)
	if err != nil {
		return err
	}
	common.PutUint64(s.s, common.Key(tokenIndexPrefix, t.Address.BytesBE()), slot+1)
	return nil
}

// token returns accepted token by its address.
func (s *state) token(addr util.Uint160) (Token, bool, error) {
	slot, ok, err := s.tokenSlot(addr)
	if err != nil || !ok {
		return Token{}, false, err
	}
	t, err := s.tokenAt(slot)
	return t, err == nil, err
}

func (s *state) tokens() ([]Token, error) {
	count, err := s.tokenCount()
	if err != nil {
		return nil, err
	}

	res := make([]Token, 0, count)
	for slot := uint64(0); slot < count; slot++ {
		t, err := s.tokenAt(slot)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// checkTokens ensures that all the tokens are accepted and unique.
func (s *state) checkTokens(list []util.Uint160) error {
	seen := make(map[util.Uint160]struct{}, len(list))
	for _, addr := range list {
		if _, ok := seen[addr]; ok {
			return fmt.Errorf("%w: duplicate token %s", ErrInvalidArgument, addr.StringLE())
		}
		seen[addr] = struct{}{}

		_, ok, err := s.tokenSlot(addr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: token %s is not accepted", ErrNotFound, addr.StringLE())
		}
	}
	return nil
}

// employees.

func (s *state) employeeID(acc util.Uint160) (uint64, error) {
	return common.GetUint64(s.s, common.Key(employeeIndexPrefix, acc.BytesBE()))
}

func (s *state) employee(id uint64) (Employee, bool, error) {
	var e Employee
	if id == 0 {
		return e, false, nil
	}

	ok, err := common.GetSerialized(s.s, common.Key(employeePrefix, common.Uint64Key(id)), &e)
	if err != nil {
		return e, false, fmt.Errorf("employee %d: %w", id, err)
	}
	return e, ok && e.IsActive(), nil
}

// activeEmployee returns active employee or ErrNotFound.
func (s *state) activeEmployee(id uint64) (Employee, error) {
	e, ok, err := s.employee(id)
	if err != nil {
		return e, err
	}
	if !ok {
		return e, fmt.Errorf("%w: employee %d", ErrNotFound, id)
	}
	return e, nil
}

// callerEmployee returns active employee owning the caller account.
func (s *state) callerEmployee(caller util.Uint160) (Employee, error) {
	id, err := s.employeeID(caller)
	if err != nil {
		return Employee{}, err
	}

	e, ok, err := s.employee(id)
	if err != nil {
		return e, err
	}
	if !ok {
		return e, common.ErrEmployeeWitnessFailed
	}
	return e, nil
}

func (s *state) putEmployee(e Employee) error {
	return common.SetSerialized(s.s, common.Key(employeePrefix, common.Uint64Key(e.ID)), &e)
}

// setSalary updates salary of the employee along with the salaries summation.
// The record is stored.
func (s *state) setSalary(e *Employee, yearly uint64) error {
	sum, err := s.uint64(salariesKey)
	if err != nil {
		return err
	}
	if sum < e.YearlyUSDCents {
		return fmt.Errorf("salaries summation %d is less than salary %d of employee %d",
			sum, e.YearlyUSDCents, e.ID)
	}

	rest := sum - e.YearlyUSDCents
	if yearly > math.MaxUint64-rest {
		return fmt.Errorf("%w: salaries summation overflow", ErrInvalidArgument)
	}

	e.YearlyUSDCents = yearly
	s.putUint64(salariesKey, rest+yearly)
	return s.putEmployee(*e)
}
