package elite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ bot.Module = (*module)(nil)

// failNthWriteDB fails the nth counter write after it is wrapped. Seed data
// through the embedded JsonDB so setup writes don't count.
type failNthWriteDB struct {
	*JsonDB
	n      int
	writes int
}

func (d *failNthWriteDB) CompareAndSetCounter(ctx context.Context, acct Account, name string, expected, value int64) (bool, error) {
	d.writes++
	if d.writes == d.n {
		return false, ErrStorageUnavailable
	}
	return d.JsonDB.CompareAndSetCounter(ctx, acct, name, expected, value)
}

func TestSettleWager(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()

	_, err := l.Adjust(ctx, acct, CounterBalance, 100)
	require.NoError(t, err)

	// loss: only the stake moves
	balance, err := settleWager(ctx, l, acct, CounterBalance, 30, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)

	// win: stake out, payout in
	balance, err = settleWager(ctx, l, acct, CounterBalance, 20, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(80), balance)

	// staking more than the balance is rejected up front
	_, err = settleWager(ctx, l, acct, CounterBalance, 999, 0)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSettleWagerRefundsStakeOnFailedPayout(t *testing.T) {
	inner := newTestDB(t)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()

	ok, err := inner.CompareAndSetCounter(ctx, acct, CounterBalance, 0, 100)
	require.NoError(t, err)
	require.True(t, ok)

	// write 1 is the stake, write 2 the payout, write 3 the refund
	db := &failNthWriteDB{JsonDB: inner, n: 2}
	l := newTestLedger(t, db, nil)

	_, err = settleWager(ctx, l, acct, CounterBalance, 60, 90)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	balance, err := l.Get(ctx, acct, CounterBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance, "a failed payout must refund the stake")
}

func TestUpgradeSkill(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()
	sk := SkillByID("eloquence")
	require.NotNil(t, sk)

	_, err := l.Adjust(ctx, acct, CounterSkillPoints, 30)
	require.NoError(t, err)

	points, level, err := upgradeSkill(ctx, l, acct, sk)
	require.NoError(t, err)
	assert.Equal(t, int64(20), points)
	assert.Equal(t, int64(1), level)

	points, level, err = upgradeSkill(ctx, l, acct, sk)
	require.NoError(t, err)
	assert.Equal(t, int64(10), points)
	assert.Equal(t, int64(2), level)

	// leadership costs 25, only 10 points left
	_, _, err = upgradeSkill(ctx, l, acct, SkillByID("leadership"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	got, err := l.Get(ctx, acct, CounterSkillPoints)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got)
}

// brokenSkillDB fails every skill level write while letting the point
// counter through, so the upgrade dies between its two legs.
type brokenSkillDB struct {
	*JsonDB
}

func (d *brokenSkillDB) CompareAndSetCounter(ctx context.Context, acct Account, name string, expected, value int64) (bool, error) {
	if strings.HasPrefix(name, "skill_") {
		return false, ErrStorageUnavailable
	}
	return d.JsonDB.CompareAndSetCounter(ctx, acct, name, expected, value)
}

func TestUpgradeSkillRefundsPointsOnFailedLevel(t *testing.T) {
	db := &brokenSkillDB{JsonDB: newTestDB(t)}
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}
	ctx := context.Background()

	_, err := l.Adjust(ctx, acct, CounterSkillPoints, 50)
	require.NoError(t, err)

	_, _, err = upgradeSkill(ctx, l, acct, SkillByID("eloquence"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	points, err := l.Get(ctx, acct, CounterSkillPoints)
	require.NoError(t, err)
	assert.Equal(t, int64(50), points, "a failed level write must refund the points")
}

func TestSkillCountersRegistered(t *testing.T) {
	db := newTestDB(t)
	l := newTestLedger(t, db, nil)
	acct := Account{UserID: "1", GuildID: "10"}

	for _, sk := range Skills {
		if _, err := l.Get(context.Background(), acct, sk.CounterName()); err != nil {
			t.Errorf("Get(%v) = %v", sk.CounterName(), err)
		}
	}
}

func TestMedal(t *testing.T) {
	tests := []struct {
		rank int
		want string
	}{
		{rank: 1, want: "🥇"},
		{rank: 2, want: "🥈"},
		{rank: 3, want: "🥉"},
		{rank: 4, want: "4."},
	}
	for _, tt := range tests {
		if got := medal(tt.rank); got != tt.want {
			t.Errorf("medal(%v) = %v, want %v", tt.rank, got, tt.want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{dur: 90 * time.Minute, want: "1h 30m"},
		{dur: 24 * time.Hour, want: "24h 0m"},
		{dur: 30 * time.Second, want: "0h 1m"},
	}
	for _, tt := range tests {
		if got := formatRemaining(tt.dur); got != tt.want {
			t.Errorf("formatRemaining(%v) = %v, want %v", tt.dur, got, tt.want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	empty := progressBar(XPForLevel(2), 2)
	if strings.Contains(empty, "█") {
		t.Errorf("progressBar at the threshold should be empty, got %v", empty)
	}

	full := progressBar(XPForLevel(3)-1, 2)
	if strings.Count(full, "█") < 19 {
		t.Errorf("progressBar just below the next threshold should be nearly full, got %v", full)
	}
}
