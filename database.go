package elite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrInsufficientBalance means an adjustment would take a non-negative
	// counter below zero. Nothing is written.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrContentionExceeded means the compare-and-set retry ceiling was hit.
	// The operation may be retried as a whole.
	ErrContentionExceeded = errors.New("contention exceeded")
	// ErrStorageUnavailable wraps any failure from the backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUnknownCounter means the counter name is not registered.
	ErrUnknownCounter = errors.New("unknown counter")
	// ErrInvalidAmount means a transfer or stake amount was negative.
	ErrInvalidAmount = errors.New("invalid amount")
)

type DB interface {
	GetConn() *sqlx.DB
	Close() error

	GetCounter(ctx context.Context, acct Account, name string) (int64, error)
	CompareAndSetCounter(ctx context.Context, acct Account, name string, expected, value int64) (bool, error)
	TopCounters(ctx context.Context, guildID, name string, limit int) ([]*CounterRow, error)

	MarkUnlocked(ctx context.Context, acct Account, ruleID string) (bool, error)
	Unlocked(ctx context.Context, acct Account) ([]string, error)

	CreateGuild(ctx context.Context, gid string) error
	UpdateGuild(ctx context.Context, gid string, gc *Guild) error
	GetGuild(ctx context.Context, gid string) (*Guild, error)
}

//
// JSON implementation DB
//

type JsonDB struct {
	path  string
	state *state
}

type state struct {
	sync.Mutex
	Counters map[string]int64  `json:"counters"`
	Unlocks  map[string]bool   `json:"unlocks"`
	Guilds   map[string]*Guild `json:"guilds"`
}

func NewJsonDatabase(path string) (*JsonDB, error) {
	db := &JsonDB{
		path: path,
		state: &state{
			Counters: make(map[string]int64),
			Unlocks:  make(map[string]bool),
			Guilds:   make(map[string]*Guild),
		},
	}
	err := db.load(path)
	return db, err
}

func (j *JsonDB) Close() error {
	return j.save()
}

func (j *JsonDB) load(path string) error {
	if _, err := os.Stat(path); err != nil {
		// file does not exist, so use default
		return nil
	}

	d, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	state := &state{}
	if err := json.Unmarshal(d, &state); err != nil {
		return err
	}
	if state.Counters == nil {
		state.Counters = make(map[string]int64)
	}
	if state.Unlocks == nil {
		state.Unlocks = make(map[string]bool)
	}
	if state.Guilds == nil {
		state.Guilds = make(map[string]*Guild)
	}

	j.state = state
	return nil
}

func (j *JsonDB) save() error {
	j.state.Lock()
	defer j.state.Unlock()

	d, err := json.Marshal(j.state)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(d)
	return err
}

func (j *JsonDB) GetConn() *sqlx.DB {
	return nil
}

func counterKey(acct Account, name string) string {
	return fmt.Sprintf("%v:%v:%v", acct.UserID, acct.GuildID, name)
}

func unlockKey(acct Account, ruleID string) string {
	return fmt.Sprintf("%v:%v:%v", acct.UserID, acct.GuildID, ruleID)
}

func (j *JsonDB) GetCounter(_ context.Context, acct Account, name string) (int64, error) {
	j.state.Lock()
	defer j.state.Unlock()
	return j.state.Counters[counterKey(acct, name)], nil
}

func (j *JsonDB) CompareAndSetCounter(_ context.Context, acct Account, name string, expected, value int64) (bool, error) {
	j.state.Lock()
	defer j.state.Unlock()
	key := counterKey(acct, name)
	if j.state.Counters[key] != expected {
		return false, nil
	}
	j.state.Counters[key] = value
	return true, nil
}

func (j *JsonDB) TopCounters(_ context.Context, guildID, name string, limit int) ([]*CounterRow, error) {
	j.state.Lock()
	defer j.state.Unlock()

	var rows []*CounterRow
	suffix := fmt.Sprintf(":%v:%v", guildID, name)
	for key, value := range j.state.Counters {
		if len(key) <= len(suffix) || key[len(key)-len(suffix):] != suffix {
			continue
		}
		rows = append(rows, &CounterRow{UserID: key[:len(key)-len(suffix)], Value: value})
	}

	sort.Slice(rows, func(i, k int) bool {
		if rows[i].Value != rows[k].Value {
			return rows[i].Value > rows[k].Value
		}
		return rows[i].UserID < rows[k].UserID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (j *JsonDB) MarkUnlocked(_ context.Context, acct Account, ruleID string) (bool, error) {
	j.state.Lock()
	defer j.state.Unlock()
	key := unlockKey(acct, ruleID)
	if j.state.Unlocks[key] {
		return false, nil
	}
	j.state.Unlocks[key] = true
	return true, nil
}

func (j *JsonDB) Unlocked(_ context.Context, acct Account) ([]string, error) {
	j.state.Lock()
	defer j.state.Unlock()

	prefix := fmt.Sprintf("%v:%v:", acct.UserID, acct.GuildID)
	var ids []string
	for key, ok := range j.state.Unlocks {
		if ok && len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ids = append(ids, key[len(prefix):])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (j *JsonDB) CreateGuild(_ context.Context, gid string) error {
	j.state.Lock()
	defer j.state.Unlock()
	if _, ok := j.state.Guilds[gid]; ok {
		return errors.New("key already exists")
	}
	j.state.Guilds[gid] = &Guild{ID: gid, XPRate: 1.0}
	return nil
}

func (j *JsonDB) UpdateGuild(_ context.Context, gid string, gc *Guild) error {
	j.state.Lock()
	defer j.state.Unlock()
	if _, ok := j.state.Guilds[gid]; !ok {
		return errors.New("key does not exist")
	}
	j.state.Guilds[gid] = gc
	return nil
}

func (j *JsonDB) GetGuild(_ context.Context, gid string) (*Guild, error) {
	j.state.Lock()
	defer j.state.Unlock()
	if v, ok := j.state.Guilds[gid]; ok {
		return v, nil
	}
	return nil, errors.New("key does not exist")
}
