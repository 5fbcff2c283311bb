package elite

import (
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"go.uber.org/zap"
)

func logApplicationCommandRan(b *Bot) func(cmd *bot.ApplicationCommandRan) {
	logger := b.logger.Named("slash")
	return func(cmd *bot.ApplicationCommandRan) {
		logger.Info("slash command ran",
			zap.String("name", cmd.Interaction.Name()),
			zap.String("guildID", cmd.Interaction.GuildID()),
			zap.String("channelID", cmd.Interaction.ChannelID()),
			zap.String("userID", cmd.Interaction.AuthorID()),
		)
	}
}

func logApplicationCommandPanicked(b *Bot) func(cmd *bot.ApplicationCommandPanicked) {
	logger := b.logger.Named("slash")
	return func(cmd *bot.ApplicationCommandPanicked) {
		logger.Error("slash command panicked",
			zap.Any("slash", cmd.ApplicationCommand),
			zap.Any("interaction", cmd.Interaction),
			zap.Any("reason", cmd.Reason),
		)
	}
}
