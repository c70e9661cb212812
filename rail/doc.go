/*
Package rail defines the payment rail used by the payroll ledger to move
native currency and tokens out of the treasury.

A rail applies a batch of transfers atomically: either every transfer of the
batch is made or none is. Token transfers follow the safe transfer
convention, a transfer reporting a falsy result fails the whole batch the
same way as an error does.

Memory is a rail that keeps balances in process memory. It is used by tests
and by standalone deployments. See package nep17 for the rail backed by a
Neo N3 chain.
*/
package rail
