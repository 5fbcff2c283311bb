package elite

import "fmt"

// Account identifies the owner of a set of counters. Global counters are
// stored with an empty guild ID so every guild sees the same value.
type Account struct {
	UserID  string `json:"user_id" db:"user_id"`
	GuildID string `json:"guild_id" db:"guild_id"`
}

func (a Account) String() string {
	return fmt.Sprintf("%v:%v", a.GuildID, a.UserID)
}

// Counter names. The set is fixed; adding a counter is a new entry in
// counterDefs, not a schema change.
const (
	CounterBalance     = "balance"
	CounterXP          = "xp"
	CounterLevel       = "level"
	CounterSkillPoints = "skill_points"
	CounterGameCoins   = "game_coins"
	CounterDailyStreak = "daily_streak"
)

type CounterDef struct {
	Name        string
	NonNegative bool
	Global      bool
}

var counterDefs = map[string]CounterDef{
	CounterBalance:     {Name: CounterBalance, NonNegative: true},
	CounterXP:          {Name: CounterXP},
	CounterLevel:       {Name: CounterLevel},
	CounterSkillPoints: {Name: CounterSkillPoints, NonNegative: true},
	CounterGameCoins:   {Name: CounterGameCoins, NonNegative: true, Global: true},
	CounterDailyStreak: {Name: CounterDailyStreak, NonNegative: true},
}

// scope normalizes an account for the counter. Global counters ignore the
// guild the command came from.
func (d CounterDef) scope(acct Account) Account {
	if d.Global {
		acct.GuildID = ""
	}
	return acct
}

// CounterRow is a single leaderboard entry.
type CounterRow struct {
	UserID string `db:"user_id"`
	Value  int64  `db:"value"`
}

// Guild holds per-guild leveling config.
type Guild struct {
	ID       string  `json:"id" db:"id"`
	LevelLog string  `json:"level_log" db:"level_log"`
	XPRate   float64 `json:"xp_rate" db:"xp_rate"`
}

const schemaCounters = `
CREATE TABLE IF NOT EXISTS counters (
	user_id  TEXT NOT NULL,
	guild_id TEXT NOT NULL,
	name     TEXT NOT NULL,
	value    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, guild_id, name)
);
`

const schemaUnlocks = `
CREATE TABLE IF NOT EXISTS unlocks (
	user_id     TEXT NOT NULL,
	guild_id    TEXT NOT NULL,
	rule_id     TEXT NOT NULL,
	unlocked_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, guild_id, rule_id)
);
`

const schemaGuilds = `
CREATE TABLE IF NOT EXISTS guilds (
	id        TEXT PRIMARY KEY,
	level_log TEXT NOT NULL DEFAULT '',
	xp_rate   REAL NOT NULL DEFAULT 1.0
);
`
