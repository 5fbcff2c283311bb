package elite

import (
	"context"
	"math/rand"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Color int

const (
	ColorRed    Color = 0xff0000
	ColorGreen  Color = 0x00ff00
	ColorBlue   Color = 0x61d1ed
	ColorGold   Color = 0xffd700
	ColorOrange Color = 0xf57f54
)

func disconnectHandler(b *Bot) func(*discordgo.Session, *discordgo.Disconnect) {
	return func(s *discordgo.Session, d *discordgo.Disconnect) {
		b.logger.Info("disconnected")
	}
}

func guildCreateHandler(b *Bot) func(*discordgo.Session, *discordgo.GuildCreate) {
	return func(s *discordgo.Session, d *discordgo.GuildCreate) {
		b.notifier.bind(s)
		ctx := context.Background()
		if _, err := b.db.GetGuild(ctx, d.ID); err != nil {
			if err := b.db.CreateGuild(ctx, d.ID); err != nil {
				b.logger.Error("failed to create new guild", zap.Error(err))
			}
		}
	}
}

// messageCreateHandler awards message xp. One grant per user per guild per
// minute; the amount is 15-25 scaled by the guild xp rate.
func messageCreateHandler(b *Bot) func(*discordgo.Session, *discordgo.MessageCreate) {
	return func(s *discordgo.Session, d *discordgo.MessageCreate) {
		if d.Author == nil || d.Author.Bot || d.GuildID == "" {
			return
		}
		b.notifier.bind(s)

		ok, err := b.store.Claim("xp", d.GuildID, d.Author.ID, xpCooldown)
		if err != nil || !ok {
			return
		}

		ctx := context.Background()
		rate := 1.0
		if gc, err := b.db.GetGuild(ctx, d.GuildID); err == nil && gc.XPRate > 0 {
			rate = gc.XPRate
		}

		xp := int64(float64(15+rand.Intn(11)) * rate)
		acct := Account{UserID: d.Author.ID, GuildID: d.GuildID}
		if _, err := b.ledger.Adjust(ctx, acct, CounterXP, xp); err != nil {
			b.logger.Error("failed to award message xp",
				zap.String("account", acct.String()), zap.Error(err))
		}
	}
}
