/*
Package dump provides I/O operations for snapshots of the payroll ledger
storage.

A snapshot keeps every storage item of the ledger along with a human-readable
summary of its state. Snapshots are used to back up and inspect the ledger,
and to restore it on another storage backend.

The package works with dumps stored in the file system using human-readable
encoding.
*/
package dump
