package rail

import (
	"context"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payroll-ledger/common"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	var (
		ctx   = context.Background()
		token = util.Uint160{0x7a}
		alice = util.Uint160{0xa1}
		bob   = util.Uint160{0xb0}
	)

	m := NewMemory()
	m.Deposit(Native, big.NewInt(100))
	m.Deposit(token, big.NewInt(10))

	requireBalance := func(t *testing.T, asset util.Uint160, expected int64) {
		b, err := m.BalanceOf(ctx, asset)
		require.NoError(t, err)
		require.EqualValues(t, expected, b.Int64())
	}

	t.Run("batch", func(t *testing.T) {
		err := m.Send(ctx, []Transfer{
			{Asset: Native, To: alice, Amount: big.NewInt(60)},
			{Asset: token, To: alice, Amount: big.NewInt(3)},
			{Asset: Native, To: bob, Amount: big.NewInt(40)},
		})
		require.NoError(t, err)

		requireBalance(t, Native, 0)
		requireBalance(t, token, 7)
		require.EqualValues(t, 60, m.AccountBalance(alice, Native).Int64())
		require.EqualValues(t, 3, m.AccountBalance(alice, token).Int64())
		require.EqualValues(t, 40, m.AccountBalance(bob, Native).Int64())
	})

	t.Run("all or nothing", func(t *testing.T) {
		err := m.Send(ctx, []Transfer{
			{Asset: token, To: alice, Amount: big.NewInt(1)},
			{Asset: Native, To: alice, Amount: big.NewInt(1)},
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
		requireBalance(t, token, 7)

		err = m.Send(ctx, []Transfer{
			{Asset: token, To: alice, Amount: big.NewInt(4)},
			{Asset: token, To: bob, Amount: big.NewInt(4)},
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
		requireBalance(t, token, 7)

		err = m.Send(ctx, []Transfer{{Asset: token, To: alice, Amount: big.NewInt(-1)}})
		require.ErrorIs(t, err, ErrTransferFailed)
	})

	t.Run("hook", func(t *testing.T) {
		m.SetTransferHook(func(tr Transfer) bool { return tr.To != bob })

		err := m.Send(ctx, []Transfer{
			{Asset: token, To: alice, Amount: big.NewInt(1)},
			{Asset: token, To: bob, Amount: big.NewInt(1)},
		})
		require.ErrorIs(t, err, ErrTransferFailed)
		requireBalance(t, token, 7)
		require.EqualValues(t, 3, m.AccountBalance(alice, token).Int64())

		m.SetTransferHook(nil)
	})

	t.Run("returned balance is a copy", func(t *testing.T) {
		b, err := m.BalanceOf(ctx, token)
		require.NoError(t, err)
		b.SetInt64(1000)
		requireBalance(t, token, 7)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := m.BalanceOf(ctx, token)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryFee(t *testing.T) {
	var (
		ctx   = context.Background()
		token = util.Uint160{0x7a}
		alice = util.Uint160{0xa1}
	)

	m := NewMemory()
	m.SetFee(big.NewInt(10))
	m.Deposit(Native, big.NewInt(100))
	m.Deposit(token, big.NewInt(5))

	batch := []Transfer{{Asset: Native, To: alice, Amount: big.NewInt(30)}}

	amount, err := m.Sweepable(ctx, Transfer{Asset: Native, To: alice}, batch)
	require.NoError(t, err)
	require.EqualValues(t, 60, amount.Int64())

	amount, err = m.Sweepable(ctx, Transfer{Asset: token, To: alice}, batch)
	require.NoError(t, err)
	require.EqualValues(t, 5, amount.Int64())

	err = m.Send(ctx, append(batch, Transfer{Asset: Native, To: alice, Amount: big.NewInt(61)}))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	require.NoError(t, m.Send(ctx, append(batch, Transfer{Asset: Native, To: alice, Amount: amount.SetInt64(60)})))
	require.EqualValues(t, 90, m.AccountBalance(alice, Native).Int64())

	b, err := m.BalanceOf(ctx, Native)
	require.NoError(t, err)
	require.Zero(t, b.Sign())

	amount, err = m.Sweepable(ctx, Transfer{Asset: Native, To: alice}, nil)
	require.NoError(t, err)
	require.Zero(t, amount.Sign())
}

func TestTransferKind(t *testing.T) {
	require.Equal(t, KindPayday, Transfer{Details: common.PaydayTransferDetails([]byte{1, 2})}.Kind())
	require.Equal(t, KindEscapeHatch, Transfer{Details: common.EscapeHatchTransferDetails(util.Uint160{1}.BytesBE())}.Kind())
	require.Equal(t, KindUnknown, Transfer{}.Kind())
}
