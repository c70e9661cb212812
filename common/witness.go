package common

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
)

var (
	// ErrWitnessFailed appears when the method must be called
	// using certain identity but was not.
	ErrWitnessFailed = errors.New("witness check failed")
	// ErrOwnerWitnessFailed appears when the method must be called
	// by the ledger owner but was not.
	ErrOwnerWitnessFailed = fmt.Errorf("owner %w", ErrWitnessFailed)
	// ErrOracleWitnessFailed appears when the method must be called
	// by the exchange rate oracle but was not.
	ErrOracleWitnessFailed = fmt.Errorf("oracle %w", ErrWitnessFailed)
	// ErrEmployeeWitnessFailed appears when the method must be called
	// by an active employee but was not.
	ErrEmployeeWitnessFailed = fmt.Errorf("employee %w", ErrWitnessFailed)
)

// CheckOwnerWitness checks that the caller is the owner.
// It returns ErrOwnerWitnessFailed on fail.
func CheckOwnerWitness(owner, caller util.Uint160) error {
	return checkWitness(owner, caller, ErrOwnerWitnessFailed)
}

// CheckOracleWitness checks that the caller is the oracle.
// It returns ErrOracleWitnessFailed on fail.
func CheckOracleWitness(oracle, caller util.Uint160) error {
	return checkWitness(oracle, caller, ErrOracleWitnessFailed)
}

func checkWitness(expected, caller util.Uint160, failure error) error {
	// zero identity is never a valid witness, even against an unset role
	if caller == (util.Uint160{}) || !caller.Equals(expected) {
		return failure
	}
	return nil
}
