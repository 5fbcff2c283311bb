package elite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SqliteDB is the file-backed implementation of DB. All counter mutations go
// through CompareAndSetCounter; there are no read-modify-write statements.
type SqliteDB struct {
	pool   *sqlx.DB
	logger *ZapLogger
	path   string
}

func NewSqliteDatabase(path string) (*SqliteDB, error) {
	logger := newLogger("database")
	db := &SqliteDB{
		logger: logger,
		path:   path,
	}

	pool, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%v?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		logger.Error("unable to connect to db", zap.Error(err))
		return nil, err
	}
	db.pool = pool

	for _, schema := range []string{schemaCounters, schemaUnlocks, schemaGuilds} {
		if _, err := pool.Exec(schema); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return db, nil
}

func (d *SqliteDB) GetConn() *sqlx.DB {
	return d.pool
}

func (d *SqliteDB) Close() error {
	return d.pool.Close()
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func (d *SqliteDB) GetCounter(ctx context.Context, acct Account, name string) (int64, error) {
	var value int64
	err := d.pool.GetContext(ctx, &value,
		"SELECT value FROM counters WHERE user_id=? AND guild_id=? AND name=?;",
		acct.UserID, acct.GuildID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return value, nil
}

func (d *SqliteDB) CompareAndSetCounter(ctx context.Context, acct Account, name string, expected, value int64) (bool, error) {
	if expected == 0 {
		// the row may not exist yet; materialize the implicit zero
		_, err := d.pool.ExecContext(ctx,
			"INSERT OR IGNORE INTO counters (user_id, guild_id, name, value) VALUES (?, ?, ?, 0);",
			acct.UserID, acct.GuildID, name)
		if err != nil {
			return false, storageErr(err)
		}
	}

	res, err := d.pool.ExecContext(ctx,
		"UPDATE counters SET value=? WHERE user_id=? AND guild_id=? AND name=? AND value=?;",
		value, acct.UserID, acct.GuildID, name, expected)
	if err != nil {
		return false, storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr(err)
	}
	return n == 1, nil
}

func (d *SqliteDB) TopCounters(ctx context.Context, guildID, name string, limit int) ([]*CounterRow, error) {
	var rows []*CounterRow
	err := d.pool.SelectContext(ctx, &rows,
		"SELECT user_id, value FROM counters WHERE guild_id=? AND name=? ORDER BY value DESC, user_id ASC LIMIT ?;",
		guildID, name, limit)
	if err != nil {
		return nil, storageErr(err)
	}
	return rows, nil
}

func (d *SqliteDB) MarkUnlocked(ctx context.Context, acct Account, ruleID string) (bool, error) {
	res, err := d.pool.ExecContext(ctx,
		"INSERT OR IGNORE INTO unlocks (user_id, guild_id, rule_id) VALUES (?, ?, ?);",
		acct.UserID, acct.GuildID, ruleID)
	if err != nil {
		return false, storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr(err)
	}
	return n == 1, nil
}

func (d *SqliteDB) Unlocked(ctx context.Context, acct Account) ([]string, error) {
	var ids []string
	err := d.pool.SelectContext(ctx, &ids,
		"SELECT rule_id FROM unlocks WHERE user_id=? AND guild_id=? ORDER BY unlocked_at ASC;",
		acct.UserID, acct.GuildID)
	if err != nil {
		return nil, storageErr(err)
	}
	return ids, nil
}

func (d *SqliteDB) CreateGuild(ctx context.Context, gid string) error {
	_, err := d.pool.ExecContext(ctx, "INSERT OR IGNORE INTO guilds (id) VALUES (?);", gid)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (d *SqliteDB) UpdateGuild(ctx context.Context, gid string, gc *Guild) error {
	_, err := d.pool.ExecContext(ctx, "UPDATE guilds SET level_log=?, xp_rate=? WHERE id=?;",
		gc.LevelLog, gc.XPRate, gid)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (d *SqliteDB) GetGuild(ctx context.Context, gid string) (*Guild, error) {
	var g Guild
	err := d.pool.GetContext(ctx, &g, "SELECT id, level_log, xp_rate FROM guilds WHERE id=?;", gid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &g, nil
}
