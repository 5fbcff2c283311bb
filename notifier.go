package elite

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/meido/pkg/utils/builders"
	"go.uber.org/zap"
)

// levelLogNotifier renders ledger events to the guild's level log channel.
// Delivery is best effort; a missing channel or a failed send is dropped
// without touching the mutation that produced the event.
type levelLogNotifier struct {
	b    *Bot
	sess atomic.Pointer[discordgo.Session]
}

func newLevelLogNotifier(b *Bot) *levelLogNotifier {
	return &levelLogNotifier{b: b}
}

// bind keeps the newest gateway session around for sends. Handlers call this
// on every event, so by the time an event fires a session is always present.
func (n *levelLogNotifier) bind(s *discordgo.Session) {
	n.sess.Store(s)
}

func (n *levelLogNotifier) Notify(evt *Event) {
	go n.send(evt)
}

func (n *levelLogNotifier) send(evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			n.b.logger.Error("notifier panicked", zap.Any("reason", r))
		}
	}()

	s := n.sess.Load()
	if s == nil || evt.Account.GuildID == "" {
		return
	}

	gc, err := n.b.db.GetGuild(context.Background(), evt.Account.GuildID)
	if err != nil || gc.LevelLog == "" {
		return
	}

	var embed *discordgo.MessageEmbed
	switch evt.Kind {
	case EventLevelUp:
		embed = builders.NewEmbedBuilder().
			WithTitle("Level Up!").
			WithColor(int(ColorGold)).
			WithDescription(fmt.Sprintf("<@%v> reached level **%v**!", evt.Account.UserID, evt.Meta["new_level"])).
			AddField("XP", fmt.Sprintf("%v", evt.New), true).
			AddField("Skill Points", "+"+evt.Meta["skill_points"], true).
			Build()
	case EventAchievement:
		embed = builders.NewEmbedBuilder().
			WithTitle("Achievement Unlocked!").
			WithColor(int(ColorGold)).
			WithDescription(fmt.Sprintf("%v <@%v> unlocked **%v**\n%v",
				evt.Meta["icon"], evt.Account.UserID, evt.Meta["name"], evt.Meta["description"])).
			AddField("Bonus XP", "+"+evt.Meta["bonus_xp"], true).
			Build()
	default:
		return
	}

	if _, err := s.ChannelMessageSendEmbed(gc.LevelLog, embed); err != nil {
		n.b.logger.Error("failed to send event embed",
			zap.String("guild", evt.Account.GuildID), zap.Error(err))
	}
}
