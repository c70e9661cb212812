package payroll

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
	"github.com/nspcc-dev/payroll-ledger/payroll/employeestate"
)

// AddEmployee registers an employee paid from the given account and returns
// the new employee ID. First payday is available one pay period after the
// registration. It can be invoked only by the owner.
func (l *Ledger) AddEmployee(ctx context.Context, caller, account util.Uint160, allowedTokens []util.Uint160, yearlyUSDCents uint64) (uint64, error) {
	var id uint64

	err := l.update(ctx, "addEmployee", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}
		if account == (util.Uint160{}) {
			return nil, fmt.Errorf("%w: empty employee account", ErrInvalidArgument)
		}

		existing, err := s.employeeID(account)
		if err != nil {
			return nil, err
		}
		if existing != 0 {
			return nil, fmt.Errorf("%w: employee %d has account %s", ErrAlreadyExists, existing, account.StringLE())
		}

		limit, err := s.tokenLimit()
		if err != nil {
			return nil, err
		}
		if uint64(len(allowedTokens)) > limit {
			return nil, fmt.Errorf("%w: %d allowed tokens, limit is %d", ErrLimitExceeded, len(allowedTokens), limit)
		}
		if err := s.checkTokens(allowedTokens); err != nil {
			return nil, err
		}

		last, err := s.uint64(lastEmployeeKey)
		if err != nil {
			return nil, err
		}
		count, err := s.uint64(employeeCountKey)
		if err != nil {
			return nil, err
		}

		e := Employee{
			ID:            last + 1,
			Account:       account,
			AllowedTokens: append([]util.Uint160(nil), allowedTokens...),
			LastPayout:    l.now(),
		}

		s.putUint64(lastEmployeeKey, e.ID)
		s.putUint64(employeeCountKey, count+1)
		common.PutUint64(s.s, common.Key(employeeIndexPrefix, account.BytesBE()), e.ID)

		if err := s.setSalary(&e, yearlyUSDCents); err != nil {
			return nil, err
		}

		id = e.ID

		return []Event{{Name: EventEmployeeAdded, EmployeeID: e.ID, Account: account, Value: yearlyUSDCents}}, nil
	})

	return id, err
}

// SetEmployeeSalary sets yearly salary of the active employee. It can be
// invoked only by the owner.
func (l *Ledger) SetEmployeeSalary(ctx context.Context, caller util.Uint160, id, yearlyUSDCents uint64) error {
	return l.update(ctx, "setEmployeeSalary", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		e, err := s.activeEmployee(id)
		if err != nil {
			return nil, err
		}

		if err := s.setSalary(&e, yearlyUSDCents); err != nil {
			return nil, err
		}

		return []Event{{Name: EventSalaryChanged, EmployeeID: id, Account: e.Account, Value: yearlyUSDCents}}, nil
	})
}

// RemoveEmployee removes the active employee. Its ID is never reused, and the
// account can be registered again. It can be invoked only by the owner.
func (l *Ledger) RemoveEmployee(ctx context.Context, caller util.Uint160, id uint64) error {
	return l.update(ctx, "removeEmployee", func(s *state) ([]Event, error) {
		if err := s.checkOwner(caller); err != nil {
			return nil, err
		}
		if err := s.checkNotPaused(); err != nil {
			return nil, err
		}

		e, err := s.activeEmployee(id)
		if err != nil {
			return nil, err
		}

		if err := s.setSalary(&e, 0); err != nil {
			return nil, err
		}

		count, err := s.uint64(employeeCountKey)
		if err != nil {
			return nil, err
		}
		s.putUint64(employeeCountKey, count-1)
		s.s.Delete(common.Key(employeeIndexPrefix, e.Account.BytesBE()))

		if err := s.putEmployee(Employee{ID: id}); err != nil {
			return nil, err
		}

		return []Event{{Name: EventEmployeeRemoved, EmployeeID: id, Account: e.Account}}, nil
	})
}

// EmployeeID returns ID of the active employee paid from the account, zero if
// there is no such employee.
func (l *Ledger) EmployeeID(account util.Uint160) (uint64, error) {
	var res uint64
	err := l.view(func(s *state) (err error) {
		res, err = s.employeeID(account)
		return
	})
	return res, err
}

// EmployeeCount returns the number of active employees.
func (l *Ledger) EmployeeCount() (uint64, error) {
	var res uint64
	err := l.view(func(s *state) (err error) {
		res, err = s.uint64(employeeCountKey)
		return
	})
	return res, err
}

// Employee returns the active employee, ErrNotFound for unknown and removed
// ones.
func (l *Ledger) Employee(id uint64) (Employee, error) {
	var res Employee
	err := l.view(func(s *state) (err error) {
		res, err = s.activeEmployee(id)
		return
	})
	return res, err
}

// Employees returns all the active employees ordered by ID.
func (l *Ledger) Employees() ([]Employee, error) {
	var res []Employee
	err := l.view(func(s *state) error {
		last, err := s.uint64(lastEmployeeKey)
		if err != nil {
			return err
		}

		for id := uint64(1); id <= last; id++ {
			e, ok, err := s.employee(id)
			if err != nil {
				return err
			}
			if ok {
				res = append(res, e)
			}
		}
		return nil
	})
	return res, err
}

// SalariesSummationUSDCents returns the sum of yearly salaries of all the
// active employees.
func (l *Ledger) SalariesSummationUSDCents() (uint64, error) {
	var res uint64
	err := l.view(func(s *state) (err error) {
		res, err = s.uint64(salariesKey)
		return
	})
	return res, err
}

// EmployeeState returns payday state of the active employee.
func (l *Ledger) EmployeeState(id uint64) (employeestate.Type, error) {
	var res employeestate.Type
	err := l.view(func(s *state) error {
		e, err := s.activeEmployee(id)
		if err != nil {
			return err
		}

		res = employeestate.Ineligible
		if l.canClaimPayday(e, l.now()) {
			res = employeestate.Eligible
		}
		return nil
	})
	return res, err
}
