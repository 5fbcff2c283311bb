package elite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *JsonDB {
	t.Helper()
	db, err := NewJsonDatabase(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	return db
}

func newTestLedger(t *testing.T, db DB, rules *RuleSet) *Ledger {
	t.Helper()
	return NewLedger(db, rules, nil, newLogger("test"))
}

func TestAdjustAndGet(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()

	got, err := l.Get(ctx, acct, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	got, err = l.Adjust(ctx, acct, CounterBalance, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got)

	got, err = l.Adjust(ctx, acct, CounterBalance, -50)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)

	got, err = l.Get(ctx, acct, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)
}

func TestAdjustInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()

	_, err := l.Adjust(ctx, acct, CounterBalance, 100)
	require.NoError(t, err)

	_, err = l.Adjust(ctx, acct, CounterBalance, -150)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	got, err := l.Get(ctx, acct, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got, "a failed adjustment must write nothing")
}

func TestAdjustUncheckedAllowsNegative(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}

	got, err := l.AdjustUnchecked(context.Background(), acct, CounterBalance, -30)
	require.NoError(t, err)
	assert.Equal(t, int64(-30), got)
}

func TestAdjustUnknownCounter(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}

	_, err := l.Adjust(context.Background(), acct, "prestige", 1)
	assert.ErrorIs(t, err, ErrUnknownCounter)
	_, err = l.Get(context.Background(), acct, "prestige")
	assert.ErrorIs(t, err, ErrUnknownCounter)
}

func TestSetReturnsPrevious(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()

	prev, err := l.Set(ctx, acct, CounterBalance, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), prev)

	prev, err = l.Set(ctx, acct, CounterBalance, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(500), prev)

	got, err := l.Get(ctx, acct, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)
}

func TestGlobalCounterIgnoresGuild(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	ctx := context.Background()

	_, err := l.Adjust(ctx, Account{UserID: "1", GuildID: "10"}, CounterGameCoins, 40)
	require.NoError(t, err)

	got, err := l.Get(ctx, Account{UserID: "1", GuildID: "999"}, CounterGameCoins)
	require.NoError(t, err)
	assert.Equal(t, int64(40), got, "game coins follow the user across guilds")

	got, err = l.Get(ctx, Account{UserID: "2", GuildID: "10"}, CounterGameCoins)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestTransfer(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	from := Account{UserID: "1", GuildID: "10"}
	to := Account{UserID: "2", GuildID: "10"}
	ctx := context.Background()

	_, err := l.Adjust(ctx, from, CounterBalance, 100)
	require.NoError(t, err)

	fromNew, toNew, err := l.Transfer(ctx, from, to, CounterBalance, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), fromNew)
	assert.Equal(t, int64(60), toNew)
}

func TestTransferInsufficient(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	from := Account{UserID: "1", GuildID: "10"}
	to := Account{UserID: "2", GuildID: "10"}
	ctx := context.Background()

	_, err := l.Adjust(ctx, from, CounterBalance, 50)
	require.NoError(t, err)

	_, _, err = l.Transfer(ctx, from, to, CounterBalance, 60)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	got, _ := l.Get(ctx, from, CounterBalance)
	assert.Equal(t, int64(50), got)
	got, _ = l.Get(ctx, to, CounterBalance)
	assert.Equal(t, int64(0), got)
}

func TestTransferNegativeAmount(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)

	_, _, err := l.Transfer(context.Background(),
		Account{UserID: "1", GuildID: "10"}, Account{UserID: "2", GuildID: "10"}, CounterBalance, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// brokenCreditDB fails every write against one account, which kills the
// credit leg of a transfer after the debit already landed.
type brokenCreditDB struct {
	*JsonDB
	broken Account
}

func (d *brokenCreditDB) CompareAndSetCounter(ctx context.Context, acct Account, name string, expected, value int64) (bool, error) {
	if acct == d.broken {
		return false, ErrStorageUnavailable
	}
	return d.JsonDB.CompareAndSetCounter(ctx, acct, name, expected, value)
}

func TestTransferRollsBackFailedCredit(t *testing.T) {
	from := Account{UserID: "1", GuildID: "10"}
	to := Account{UserID: "2", GuildID: "10"}
	db := &brokenCreditDB{JsonDB: newTestDB(t), broken: to}
	l := newTestLedger(t, db, nil)
	ctx := context.Background()

	_, err := l.Adjust(ctx, from, CounterBalance, 100)
	require.NoError(t, err)

	_, _, err = l.Transfer(ctx, from, to, CounterBalance, 60)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	got, err := l.Get(ctx, from, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got, "the debit must be compensated")
}

// contendedDB never lets a compare-and-set through.
type contendedDB struct {
	*JsonDB
}

func (d *contendedDB) CompareAndSetCounter(context.Context, Account, string, int64, int64) (bool, error) {
	return false, nil
}

func TestAdjustContentionExceeded(t *testing.T) {
	db := &contendedDB{JsonDB: newTestDB(t)}
	l := newTestLedger(t, db, nil)

	_, err := l.Adjust(context.Background(), Account{UserID: "1", GuildID: "10"}, CounterBalance, 5)
	assert.ErrorIs(t, err, ErrContentionExceeded)
}

func TestBalanceLifecycle(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	u1 := Account{UserID: "1", GuildID: "10"}
	u2 := Account{UserID: "2", GuildID: "10"}
	ctx := context.Background()

	got, err := l.Adjust(ctx, u1, CounterBalance, 100)
	require.NoError(t, err)
	require.Equal(t, int64(100), got)

	_, err = l.Adjust(ctx, u1, CounterBalance, -150)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	got, err = l.Get(ctx, u1, CounterBalance)
	require.NoError(t, err)
	require.Equal(t, int64(100), got)

	_, _, err = l.Transfer(ctx, u1, u2, CounterBalance, 50)
	require.NoError(t, err)

	got, err = l.Get(ctx, u1, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
	got, err = l.Get(ctx, u2, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
}

func TestConcurrentAdjustsLoseNoUpdates(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()

	for _, workers := range []int{2, 10, 50} {
		_, err := l.Set(ctx, acct, CounterBalance, 0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		var applied int64
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := l.Adjust(ctx, acct, CounterBalance, 1); err == nil {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		got, err := l.Get(ctx, acct, CounterBalance)
		require.NoError(t, err)
		assert.Equal(t, applied, got, "value must equal the number of adjustments that reported success")
	}
}
