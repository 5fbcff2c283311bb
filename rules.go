package elite

import (
	"context"
	"fmt"
	"math"
)

// Rule is a declarative trigger bound to a single counter. Predicates are
// pure functions of the committed transition; effects are ordinary ledger
// adjustments that run their own evaluation pass.
type Rule struct {
	ID      string
	Counter string
	Kind    string
	// OneShot rules fire at most once per account, enforced through
	// DB.MarkUnlocked rather than in-process state.
	OneShot   bool
	Predicate func(old, new int64) bool
	Effect    func(ctx context.Context, l *Ledger, acct Account, old, new int64) error
	Annotate  func(evt *Event)
}

// RuleSet holds registered rules. Rules bound to the same counter are
// evaluated in registration order.
type RuleSet struct {
	byCounter map[string][]*Rule
}

func NewRuleSet() *RuleSet {
	return &RuleSet{byCounter: make(map[string][]*Rule)}
}

func (rs *RuleSet) Register(r *Rule) {
	rs.byCounter[r.Counter] = append(rs.byCounter[r.Counter], r)
}

func (rs *RuleSet) For(counter string) []*Rule {
	return rs.byCounter[counter]
}

// LevelAt converts cumulative xp to a level.
func LevelAt(xp int64) int64 {
	if xp <= 0 {
		return 0
	}
	return int64(math.Sqrt(float64(xp)) / 10)
}

// XPForLevel is the cumulative xp needed to reach a level.
func XPForLevel(level int64) int64 {
	return level * level * 100
}

// Achievement describes a one-shot unlock and its xp bonus.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
	BonusXP     int64
}

var Achievements = []*Achievement{
	{ID: "first_message", Name: "First Steps", Description: "Send your first message", Icon: "👋", BonusXP: 50},
	{ID: "level_10", Name: "Rising Star", Description: "Reach level 10", Icon: "⭐", BonusXP: 100},
	{ID: "level_25", Name: "Veteran", Description: "Reach level 25", Icon: "🎖️", BonusXP: 250},
	{ID: "level_50", Name: "Legend", Description: "Reach level 50", Icon: "👑", BonusXP: 500},
	{ID: "daily_streak_7", Name: "Dedicated", Description: "7-day daily streak", Icon: "🔥", BonusXP: 200},
}

// AchievementByID returns nil for unknown ids.
func AchievementByID(id string) *Achievement {
	for _, a := range Achievements {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Skill is one upgradable node of the skill trees. Skill levels are ordinary
// non-negative counters, so upgrades go through the same engine as coins.
type Skill struct {
	ID       string
	Tree     string
	Name     string
	Effect   string
	Cost     int64
	MaxLevel int64
}

var Skills = []*Skill{
	{ID: "eloquence", Tree: "Communication", Name: "Eloquence", Effect: "Bonus XP for messages", Cost: 10, MaxLevel: 5},
	{ID: "charisma", Tree: "Communication", Name: "Charisma", Effect: "Better reaction rewards", Cost: 15, MaxLevel: 5},
	{ID: "leadership", Tree: "Communication", Name: "Leadership", Effect: "Team bonus XP", Cost: 25, MaxLevel: 3},
	{ID: "strategy", Tree: "Gaming", Name: "Strategy", Effect: "Game win bonus", Cost: 10, MaxLevel: 5},
	{ID: "luck", Tree: "Gaming", Name: "Luck", Effect: "Better gambling odds", Cost: 15, MaxLevel: 5},
	{ID: "persistence", Tree: "Gaming", Name: "Persistence", Effect: "Daily streak bonus", Cost: 25, MaxLevel: 3},
}

// SkillByID returns nil for unknown ids.
func SkillByID(id string) *Skill {
	for _, s := range Skills {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (s *Skill) CounterName() string {
	return "skill_" + s.ID
}

func init() {
	for _, s := range Skills {
		counterDefs[s.CounterName()] = CounterDef{Name: s.CounterName(), NonNegative: true}
	}
}

// DefaultRules builds the leveling and achievement rules the bot ships with.
func DefaultRules() *RuleSet {
	rs := NewRuleSet()

	rs.Register(&Rule{
		ID:      "level_up",
		Counter: CounterXP,
		Kind:    EventLevelUp,
		Predicate: func(old, new int64) bool {
			return LevelAt(new) > LevelAt(old)
		},
		Effect: func(ctx context.Context, l *Ledger, acct Account, old, new int64) error {
			gained := LevelAt(new) - LevelAt(old)
			if _, err := l.Set(ctx, acct, CounterLevel, LevelAt(new)); err != nil {
				return err
			}
			_, err := l.Adjust(ctx, acct, CounterSkillPoints, gained)
			return err
		},
		Annotate: func(evt *Event) {
			evt.Meta["old_level"] = fmt.Sprint(LevelAt(evt.Old))
			evt.Meta["new_level"] = fmt.Sprint(LevelAt(evt.New))
			evt.Meta["skill_points"] = fmt.Sprint(LevelAt(evt.New) - LevelAt(evt.Old))
		},
	})

	registerAchievement(rs, "first_message", CounterXP, func(old, new int64) bool {
		return new > 0
	})
	registerAchievement(rs, "level_10", CounterXP, func(old, new int64) bool {
		return LevelAt(new) >= 10
	})
	registerAchievement(rs, "level_25", CounterXP, func(old, new int64) bool {
		return LevelAt(new) >= 25
	})
	registerAchievement(rs, "level_50", CounterXP, func(old, new int64) bool {
		return LevelAt(new) >= 50
	})
	registerAchievement(rs, "daily_streak_7", CounterDailyStreak, func(old, new int64) bool {
		return new >= 7
	})

	return rs
}

func registerAchievement(rs *RuleSet, id, counter string, predicate func(old, new int64) bool) {
	ach := AchievementByID(id)

	rs.Register(&Rule{
		ID:        id,
		Counter:   counter,
		Kind:      EventAchievement,
		OneShot:   true,
		Predicate: predicate,
		Effect: func(ctx context.Context, l *Ledger, acct Account, old, new int64) error {
			if ach == nil || ach.BonusXP == 0 {
				return nil
			}
			_, err := l.Adjust(ctx, acct, CounterXP, ach.BonusXP)
			return err
		},
		Annotate: func(evt *Event) {
			if ach == nil {
				return
			}
			evt.Meta["name"] = ach.Name
			evt.Meta["description"] = ach.Description
			evt.Meta["icon"] = ach.Icon
			evt.Meta["bonus_xp"] = fmt.Sprint(ach.BonusXP)
		},
	})
}
