package elite

import (
	"context"

	"github.com/intrntsrfr/meido/pkg/mio"
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/intrntsrfr/meido/pkg/utils"
)

type Bot struct {
	Bot      *bot.Bot
	logger   mio.Logger
	config   *utils.Config
	db       DB
	store    *Store
	ledger   *Ledger
	notifier *levelLogNotifier
}

func NewBot(config *utils.Config, db DB) *Bot {
	logger := newLogger("bot")

	b := bot.NewBotBuilder(config).
		WithDefaultHandlers().
		WithLogger(logger).
		Build()

	kvStore, err := NewStore("./data", logger)
	if err != nil {
		panic("failed to create kvstore")
	}

	bot := &Bot{
		Bot:    b,
		db:     db,
		logger: logger,
		config: config,
		store:  kvStore,
	}
	bot.notifier = newLevelLogNotifier(bot)
	bot.ledger = NewLedger(db, DefaultRules(), bot.notifier, logger)

	return bot
}

// Ledger exposes the counter engine to callers outside the command modules.
func (b *Bot) Ledger() *Ledger {
	return b.ledger
}

func (b *Bot) Run(ctx context.Context) error {
	b.registerModules()
	b.registerDiscordHandlers()
	b.registerMioHandlers()
	return b.Bot.Run(ctx)
}

func (b *Bot) Close() {
	b.Bot.Close()
	if err := b.store.Close(); err != nil {
		b.logger.Error("failed to close kvstore")
	}
}

func (b *Bot) registerModules() {
	modules := []bot.Module{
		NewModule(b, b.logger),
	}
	for _, mod := range modules {
		b.Bot.RegisterModule(mod)
	}
}

func (b *Bot) registerDiscordHandlers() {
	b.Bot.Discord.AddEventHandler(disconnectHandler(b))
	b.Bot.Discord.AddEventHandler(guildCreateHandler(b))
	b.Bot.Discord.AddEventHandler(messageCreateHandler(b))
}

func (b *Bot) registerMioHandlers() {
	b.Bot.AddHandler(logApplicationCommandPanicked(b))
	b.Bot.AddHandler(logApplicationCommandRan(b))
}
