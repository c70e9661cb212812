package payroll

import (
	"fmt"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// maxListLen limits decoded list lengths.
const maxListLen = 1024

// Token is an accepted payment token.
type Token struct {
	Address      util.Uint160
	USDRateCents uint64
}

// EncodeBinary implements io.Serializable.
func (t *Token) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(t.Address.BytesBE())
	w.WriteU64LE(t.USDRateCents)
}

// DecodeBinary implements io.Serializable.
func (t *Token) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(t.Address[:])
	t.USDRateCents = r.ReadU64LE()
}

// Employee is a record of the employee registry. Removed employees are kept
// as tombstones having only ID set.
type Employee struct {
	ID      uint64
	Account util.Uint160

	AllowedTokens  []util.Uint160
	YearlyUSDCents uint64

	LastPayout     time.Time
	LastAllocation time.Time

	// Remainder of yearly salaries not paid yet, in twelfths of a cent.
	AccruedTwelfths uint64

	// Parallel lists, TokenAllocation[i] percents of monthly pay are paid in
	// TokenAllocated[i].
	TokenAllocated  []util.Uint160
	TokenAllocation []uint32
}

// IsActive checks whether the record describes an active employee and not a
// tombstone.
func (e Employee) IsActive() bool {
	return e.ID != 0 && e.Account != (util.Uint160{})
}

// AllocatedPercentage returns the sum of allocation percentages.
func (e Employee) AllocatedPercentage() uint64 {
	var sum uint64
	for _, p := range e.TokenAllocation {
		sum += uint64(p)
	}
	return sum
}

// EncodeBinary implements io.Serializable.
func (e *Employee) EncodeBinary(w *io.BinWriter) {
	w.WriteU64LE(e.ID)
	w.WriteBytes(e.Account.BytesBE())
	writeHashes(w, e.AllowedTokens)
	w.WriteU64LE(e.YearlyUSDCents)
	writeTime(w, e.LastPayout)
	writeTime(w, e.LastAllocation)
	w.WriteU64LE(e.AccruedTwelfths)
	writeHashes(w, e.TokenAllocated)
	w.WriteVarUint(uint64(len(e.TokenAllocation)))
	for _, p := range e.TokenAllocation {
		w.WriteU32LE(p)
	}
}

// DecodeBinary implements io.Serializable.
func (e *Employee) DecodeBinary(r *io.BinReader) {
	e.ID = r.ReadU64LE()
	r.ReadBytes(e.Account[:])
	e.AllowedTokens = readHashes(r)
	e.YearlyUSDCents = r.ReadU64LE()
	e.LastPayout = readTime(r)
	e.LastAllocation = readTime(r)
	e.AccruedTwelfths = r.ReadU64LE()
	e.TokenAllocated = readHashes(r)

	n := readListLen(r)
	if n == 0 {
		e.TokenAllocation = nil
		return
	}
	e.TokenAllocation = make([]uint32, n)
	for i := range e.TokenAllocation {
		e.TokenAllocation[i] = r.ReadU32LE()
	}
	if r.Err == nil && len(e.TokenAllocation) != len(e.TokenAllocated) {
		r.Err = fmt.Errorf("allocation of %d tokens has %d percentages",
			len(e.TokenAllocated), len(e.TokenAllocation))
	}
}

func writeHashes(w *io.BinWriter, list []util.Uint160) {
	w.WriteVarUint(uint64(len(list)))
	for i := range list {
		w.WriteBytes(list[i].BytesBE())
	}
}

func readHashes(r *io.BinReader) []util.Uint160 {
	n := readListLen(r)
	if n == 0 {
		return nil
	}
	res := make([]util.Uint160, n)
	for i := range res {
		r.ReadBytes(res[i][:])
	}
	return res
}

func readListLen(r *io.BinReader) int {
	n := r.ReadVarUint()
	if r.Err != nil {
		return 0
	}
	if n > maxListLen {
		r.Err = fmt.Errorf("list is too long: %d", n)
		return 0
	}
	return int(n)
}

// time is stored as Unix milliseconds, zero time as 0.
func writeTime(w *io.BinWriter, t time.Time) {
	var ms int64
	if !t.IsZero() {
		ms = t.UnixMilli()
	}
	w.WriteU64LE(uint64(ms))
}

func readTime(r *io.BinReader) time.Time {
	ms := int64(r.ReadU64LE())
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
