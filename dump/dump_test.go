package dump

import (
	"context"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/payroll"
	"github.com/nspcc-dev/payroll-ledger/rail"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	owner  = util.Uint160{0x01}
	alice  = util.Uint160{0xa1}
	tokenA = util.Uint160{0x7a}
)

func newLedger(t *testing.T, store storage.Store) *payroll.Ledger {
	l, err := payroll.Open(store, rail.NewMemory(), payroll.Prm{Owner: owner},
		payroll.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return l
}

func TestDumpRestore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	l := newLedger(t, store)

	require.NoError(t, l.AddToken(ctx, owner, tokenA, 250))
	require.NoError(t, l.SetNativeExchangeRate(ctx, owner, 1000))
	_, err := l.AddEmployee(ctx, owner, alice, []util.Uint160{tokenA}, 120000)
	require.NoError(t, err)

	summary, err := NewSummary(l)
	require.NoError(t, err)
	require.Equal(t, address.Uint160ToString(owner), summary.Owner)
	require.EqualValues(t, 1, summary.EmployeeCount)
	require.EqualValues(t, 120000, summary.SalariesUSDCents)
	require.Equal(t, []SummaryToken{{
		Address:      address.Uint160ToString(tokenA),
		USDRateCents: 250,
	}}, summary.Tokens)

	dir := t.TempDir()
	id := ID{Label: "test-net", Time: 1700000000}

	c, err := NewCreator(dir, id)
	require.NoError(t, err)
	c.SetSummary(summary)
	require.NoError(t, c.DumpStore(store))
	require.NoError(t, c.Flush())
	require.NoError(t, c.Close())

	_, err = NewCreator(dir, id)
	require.Error(t, err, "dump must not be overwritten")

	var (
		found    int
		sections = make(map[string]int)
		restored = storage.NewMemoryStore()
	)

	require.NoError(t, IterateDumps(dir, func(dumpID ID, r *Reader) {
		found++
		require.Equal(t, id, dumpID)
		require.Equal(t, summary, r.Summary())

		r.IterateStorage(func(section string, key, _ []byte) {
			require.NotEmpty(t, key)
			require.Equal(t, section, sectionName(key[0]))
			sections[section]++
		})

		require.NoError(t, r.Restore(restored))
		require.Error(t, r.Restore(restored), "restore into non-empty store")
	}))
	require.Equal(t, 1, found)
	require.Equal(t, 1, sections["e"])
	require.Equal(t, 1, sections["E"])

	l2 := newLedger(t, restored)

	summary2, err := NewSummary(l2)
	require.NoError(t, err)
	require.Equal(t, summary, summary2)

	id2, err := l2.EmployeeID(alice)
	require.NoError(t, err)
	require.EqualValues(t, 1, id2)
}

func TestIterateDumpsMissingDir(t *testing.T) {
	var called bool
	err := IterateDumps(t.TempDir()+"/none", func(ID, *Reader) { called = true })
	require.NoError(t, err)
	require.False(t, called)
}

func TestID(t *testing.T) {
	id := ID{Label: "prod", Time: 42}
	require.Equal(t, "prod-42", id.String())
	require.Equal(t, "prod-42-storage.csv", id.fileName(kindStorage))

	res, ok, err := parseID(id.fileName(kindSummary))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, res)

	res, ok, err = parseID("eu-west-staging-1700000000-summary.json")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ID{Label: "eu-west-staging", Time: 1700000000}, res)

	_, ok, err = parseID(id.fileName(kindStorage))
	require.NoError(t, err)
	require.False(t, ok)

	for _, name := range []string{"42-summary.json", "-42-summary.json", "prod-x-summary.json"} {
		_, ok, err = parseID(name)
		require.True(t, ok, name)
		require.Error(t, err, name)
	}
}
