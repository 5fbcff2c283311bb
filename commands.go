package elite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/intrntsrfr/meido/pkg/mio"
	"github.com/intrntsrfr/meido/pkg/mio/bot"
	"github.com/intrntsrfr/meido/pkg/mio/discord"
	"github.com/intrntsrfr/meido/pkg/utils/builders"
	"go.uber.org/zap"
)

const (
	xpCooldown    = time.Minute
	dailyCooldown = 24 * time.Hour
	streakWindow  = 48 * time.Hour

	dailyTokens      = 25
	leaderboardLimit = 10
)

var workJobs = []string{
	"worked as a developer", "delivered packages", "worked at a restaurant",
	"did freelance work", "tutored a student", "worked as a designer",
}

var slotSymbols = []string{"🍎", "🍊", "🍇", "🍒", "💎", "7️⃣"}

type shopItem struct {
	ID          string
	Name        string
	Description string
	Price       int64
}

var shopItems = []*shopItem{
	{ID: "role_color", Name: "Custom Role Color", Description: "Get a custom colored role", Price: 1000},
	{ID: "xp_boost", Name: "XP Boost", Description: "2x XP for 24 hours", Price: 500},
	{ID: "vip", Name: "VIP Status", Description: "Exclusive VIP perks", Price: 2000},
	{ID: "custom_emoji", Name: "Custom Emoji", Description: "Create a custom server emoji", Price: 1500},
}

func shopItemByID(id string) *shopItem {
	for _, it := range shopItems {
		if it.ID == id {
			return it
		}
	}
	return nil
}

type module struct {
	*bot.ModuleBase
	b *Bot
}

func NewModule(b *Bot, logger mio.Logger) *module {
	logger = logger.Named("commands")
	return &module{
		ModuleBase: bot.NewModule(b.Bot, "commands", logger),
		b:          b,
	}
}

func (m *module) Hook() error {
	if err := m.RegisterCommands(); err != nil {
		return err
	}
	if err := m.RegisterApplicationCommands(
		newBalanceSlash(m),
		newDailySlash(m),
		newWorkSlash(m),
		newGiveSlash(m),
		newGambleSlash(m),
		newFlipSlash(m),
		newSlotsSlash(m),
		newShopSlash(m),
		newBuySlash(m),
		newLevelSlash(m),
		newSkillsSlash(m),
		newSkillUpSlash(m),
		newAchievementsSlash(m),
		newLeaderboardSlash(m),
		newSetBalanceSlash(m),
		newSettingsSlash(m),
	); err != nil {
		return err
	}

	return nil
}

func (m *module) acct(d *discord.DiscordApplicationCommand) Account {
	return Account{UserID: d.AuthorID(), GuildID: d.GuildID()}
}

func (m *module) ledger() *Ledger {
	return m.b.ledger
}

// settleWager debits the stake and, for a won bet, credits the payout. A
// payout that cannot be written refunds the stake, so a storage failure
// mid-wager never destroys coins.
func settleWager(ctx context.Context, l *Ledger, acct Account, counter string, stake, payout int64) (int64, error) {
	balance, err := l.Adjust(ctx, acct, counter, -stake)
	if err != nil {
		return 0, err
	}
	if payout == 0 {
		return balance, nil
	}

	balance, err = l.Adjust(ctx, acct, counter, payout)
	if err != nil {
		if _, rbErr := l.Adjust(ctx, acct, counter, stake); rbErr != nil {
			l.logger.Error("wager refund failed, counter total is off",
				zap.String("account", acct.String()),
				zap.String("counter", counter),
				zap.Int64("stake", stake),
				zap.Error(rbErr),
			)
		}
		return 0, err
	}
	return balance, nil
}

// upgradeSkill spends the skill's cost and raises its level by one. The two
// counters move together: a level write that fails refunds the points.
func upgradeSkill(ctx context.Context, l *Ledger, acct Account, sk *Skill) (int64, int64, error) {
	points, err := l.Adjust(ctx, acct, CounterSkillPoints, -sk.Cost)
	if err != nil {
		return 0, 0, err
	}

	level, err := l.Adjust(ctx, acct, sk.CounterName(), 1)
	if err != nil {
		if _, rbErr := l.Adjust(ctx, acct, CounterSkillPoints, sk.Cost); rbErr != nil {
			l.logger.Error("skill point refund failed",
				zap.String("account", acct.String()),
				zap.String("skill", sk.ID),
				zap.Error(rbErr),
			)
		}
		return 0, 0, err
	}
	return points, level, nil
}

// respondLedgerErr turns engine errors into messages; the ledger itself never
// formats user-facing text.
func respondLedgerErr(d *discord.DiscordApplicationCommand, err error) {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		d.Respond("You don't have enough for that.")
	case errors.Is(err, ErrContentionExceeded):
		d.Respond("Things are a bit busy, try again in a moment.")
	default:
		d.Respond("Something went wrong.")
	}
}

func medal(i int) string {
	switch i {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return fmt.Sprintf("%v.", i)
}

func formatRemaining(dur time.Duration) string {
	dur = dur.Round(time.Minute)
	return fmt.Sprintf("%vh %vm", int(dur.Hours()), int(dur.Minutes())%60)
}

func newBalanceSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "balance").
		Type(discordgo.ChatApplicationCommand).
		Description("Check your coin balance").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The user to check instead of yourself",
		})

	run := func(d *discord.DiscordApplicationCommand) {
		acct := m.acct(d)
		if opt, ok := d.Options("user"); ok {
			acct.UserID = opt.UserValue(d.Sess.Real()).ID
		}

		balance, err := m.ledger().Get(context.Background(), acct, CounterBalance)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}
		tokens, err := m.ledger().Get(context.Background(), acct, CounterGameCoins)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Balance").
			WithOkColor().
			WithDescription(fmt.Sprintf("<@%v>", acct.UserID)).
			AddField("Coins", fmt.Sprintf("%v", balance), true).
			AddField("Arcade tokens", fmt.Sprintf("%v", tokens), true)
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newDailySlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "daily").
		Type(discordgo.ChatApplicationCommand).
		Description("Claim your daily reward").
		NoDM()

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())
		acct := m.acct(d)

		ok, err := m.b.store.Claim("daily", acct.GuildID, acct.UserID, dailyCooldown)
		if err != nil {
			d.Respond("Something went wrong.")
			return
		}
		if !ok {
			remaining, _ := m.b.store.Remaining("daily", acct.GuildID, acct.UserID)
			embed := builders.NewEmbedBuilder().
				WithTitle("Daily Cooldown").
				WithColor(int(ColorRed)).
				WithDescription(fmt.Sprintf("You can claim again in **%v**", formatRemaining(remaining)))
			d.RespondEmbed(embed.Build())
			return
		}

		ctx := context.Background()

		// a claim within the window continues the streak, otherwise it resets
		continued, _ := m.b.store.Touch("streak", acct.GuildID, acct.UserID, streakWindow)
		var streak int64 = 1
		if continued {
			if streak, err = m.ledger().Adjust(ctx, acct, CounterDailyStreak, 1); err != nil {
				streak = 1
			}
		} else if _, err := m.ledger().Set(ctx, acct, CounterDailyStreak, 1); err != nil {
			respondLedgerErr(d, err)
			return
		}

		reward := int64(100 + rand.Intn(401))
		balance, err := m.ledger().Adjust(ctx, acct, CounterBalance, reward)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}
		_, _ = m.ledger().Adjust(ctx, acct, CounterGameCoins, dailyTokens)

		embed := builders.NewEmbedBuilder().
			WithTitle("Daily Reward").
			WithColor(int(ColorGreen)).
			WithDescription(fmt.Sprintf("You claimed **%v** coins and **%v** arcade tokens!", reward, dailyTokens)).
			AddField("New balance", fmt.Sprintf("%v", balance), true).
			AddField("Streak", fmt.Sprintf("%v days", streak), true)
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newWorkSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "work").
		Type(discordgo.ChatApplicationCommand).
		Description("Work to earn coins").
		NoDM()

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())
		acct := m.acct(d)

		earnings := int64(50 + rand.Intn(151))
		balance, err := m.ledger().Adjust(context.Background(), acct, CounterBalance, earnings)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		job := workJobs[rand.Intn(len(workJobs))]
		embed := builders.NewEmbedBuilder().
			WithTitle("Work").
			WithColor(int(ColorGreen)).
			WithDescription(fmt.Sprintf("You %v and earned **%v** coins!\nNew balance: **%v** coins", job, earnings, balance))
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newGiveSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "give").
		Type(discordgo.ChatApplicationCommand).
		Description("Give coins to another user").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The user to give coins to",
			Required:    true,
		}).
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "amount",
			Description: "The amount of coins to give",
			Required:    true,
			MinValue:    func() *float64 { v := 1.0; return &v }(),
		})

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())

		userOpt, ok := d.Options("user")
		if !ok {
			d.Respond("User not found")
			return
		}
		amountOpt, ok := d.Options("amount")
		if !ok {
			d.Respond("Amount not found")
			return
		}

		target := userOpt.UserValue(d.Sess.Real())
		amount := amountOpt.IntValue()
		if target == nil || amount <= 0 {
			d.Respond("Please pick a user and a positive amount.")
			return
		}
		if target.Bot {
			d.Respond("You cannot give coins to bots.")
			return
		}

		from := m.acct(d)
		to := Account{UserID: target.ID, GuildID: d.GuildID()}
		if from.UserID == to.UserID {
			d.Respond("You cannot give coins to yourself.")
			return
		}

		fromNew, _, err := m.ledger().Transfer(context.Background(), from, to, CounterBalance, amount)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Gift Sent").
			WithColor(int(ColorGreen)).
			WithDescription(fmt.Sprintf("You gave **%v** coins to %v!\nYour new balance: **%v** coins",
				amount, target.Mention(), fromNew))
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newGambleSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "gamble").
		Type(discordgo.ChatApplicationCommand).
		Description("Gamble your coins").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "amount",
			Description: "The amount of coins to gamble",
			Required:    true,
			MinValue:    func() *float64 { v := 1.0; return &v }(),
		})

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())

		amountOpt, ok := d.Options("amount")
		if !ok {
			d.Respond("Amount not found")
			return
		}
		amount := amountOpt.IntValue()
		if amount <= 0 {
			d.Respond("Please specify a positive amount.")
			return
		}

		acct := m.acct(d)

		// stake first so a loss can never go below zero
		var payout int64
		if rand.Float64() < 0.4 {
			payout = amount * 3 / 2
		}
		balance, err := settleWager(context.Background(), m.ledger(), acct, CounterBalance, amount, payout)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		if payout > 0 {
			embed := builders.NewEmbedBuilder().
				WithTitle("You Won!").
				WithColor(int(ColorGreen)).
				WithDescription(fmt.Sprintf("You won **%v** coins!\nNew balance: **%v** coins", payout, balance))
			d.RespondEmbed(embed.Build())
			return
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("You Lost!").
			WithColor(int(ColorRed)).
			WithDescription(fmt.Sprintf("You lost **%v** coins.\nNew balance: **%v** coins", amount, balance))
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newFlipSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "flip").
		Type(discordgo.ChatApplicationCommand).
		Description("Flip a coin for arcade tokens").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "amount",
			Description: "The amount of arcade tokens to bet",
			Required:    true,
			MinValue:    func() *float64 { v := 1.0; return &v }(),
		}).
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "side",
			Description: "The side to bet on",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Heads", Value: "heads"},
				{Name: "Tails", Value: "tails"},
			},
		})

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())

		amountOpt, ok := d.Options("amount")
		if !ok {
			d.Respond("Amount not found")
			return
		}
		sideOpt, ok := d.Options("side")
		if !ok {
			d.Respond("Side not found")
			return
		}

		amount := amountOpt.IntValue()
		side := sideOpt.StringValue()
		if amount <= 0 {
			d.Respond("Please specify a positive amount.")
			return
		}

		acct := m.acct(d)

		result := "heads"
		if rand.Intn(2) == 1 {
			result = "tails"
		}
		var payout int64
		if result == side {
			payout = amount * 2
		}

		tokens, err := settleWager(context.Background(), m.ledger(), acct, CounterGameCoins, amount, payout)
		if err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				d.Respond("You don't have enough arcade tokens. Claim your daily reward to get more.")
				return
			}
			respondLedgerErr(d, err)
			return
		}

		if payout > 0 {
			embed := builders.NewEmbedBuilder().
				WithTitle("Coin Flip").
				WithColor(int(ColorGreen)).
				WithDescription(fmt.Sprintf("It's **%v**! You won **%v** tokens.\nTokens: **%v**", result, amount, tokens))
			d.RespondEmbed(embed.Build())
			return
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Coin Flip").
			WithColor(int(ColorRed)).
			WithDescription(fmt.Sprintf("It's **%v**. You lost **%v** tokens.\nTokens: **%v**", result, amount, tokens))
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newSlotsSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "slots").
		Type(discordgo.ChatApplicationCommand).
		Description("Play the slot machine").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "bet",
			Description: "The amount of coins to bet",
			Required:    true,
			MinValue:    func() *float64 { v := 1.0; return &v }(),
		})

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())

		betOpt, ok := d.Options("bet")
		if !ok {
			d.Respond("Bet not found")
			return
		}
		bet := betOpt.IntValue()
		if bet <= 0 {
			d.Respond("Please specify a positive bet.")
			return
		}

		reels := make([]string, 3)
		distinct := make(map[string]bool, 3)
		for i := range reels {
			reels[i] = slotSymbols[rand.Intn(len(slotSymbols))]
			distinct[reels[i]] = true
		}

		// triple pays 3x, a pair pays 1.5x
		var payout int64
		switch len(distinct) {
		case 1:
			payout = bet * 3
		case 2:
			payout = bet * 3 / 2
		}

		acct := m.acct(d)
		balance, err := settleWager(context.Background(), m.ledger(), acct, CounterBalance, bet, payout)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		row := fmt.Sprintf("[ %v ]", strings.Join(reels, " | "))
		color := int(ColorRed)
		outcome := fmt.Sprintf("You lost **%v** coins.", bet)
		switch len(distinct) {
		case 1:
			color = int(ColorGold)
			outcome = fmt.Sprintf("**JACKPOT!** You won **%v** coins!", payout)
		case 2:
			color = int(ColorGreen)
			outcome = fmt.Sprintf("You won **%v** coins!", payout)
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Slots").
			WithColor(color).
			WithDescription(fmt.Sprintf("%v\n\n%v\nNew balance: **%v** coins", row, outcome, balance))
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newShopSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "shop").
		Type(discordgo.ChatApplicationCommand).
		Description("Browse the shop").
		NoDM()

	run := func(d *discord.DiscordApplicationCommand) {
		text := strings.Builder{}
		for _, it := range shopItems {
			text.WriteString(fmt.Sprintf("**%v** - %v coins\n%v\n\n", it.Name, it.Price, it.Description))
		}
		text.WriteString("Use `/buy` to purchase an item.")

		embed := builders.NewEmbedBuilder().
			WithTitle("Shop").
			WithOkColor().
			WithDescription(text.String())
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newBuySlash(m *module) *bot.ModuleApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(shopItems))
	for _, it := range shopItems {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  it.Name,
			Value: it.ID,
		})
	}

	cmd := bot.NewModuleApplicationCommandBuilder(m, "buy").
		Type(discordgo.ChatApplicationCommand).
		Description("Buy an item from the shop").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "item",
			Description: "The item to buy",
			Required:    true,
			Choices:     choices,
		})

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())

		itemOpt, ok := d.Options("item")
		if !ok {
			d.Respond("Item not found")
			return
		}
		it := shopItemByID(itemOpt.StringValue())
		if it == nil {
			d.Respond("That item doesn't exist in the shop.")
			return
		}

		acct := m.acct(d)
		balance, err := m.ledger().Adjust(context.Background(), acct, CounterBalance, -it.Price)
		if err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				d.Respond(fmt.Sprintf("You need **%v** coins for %v.", it.Price, it.Name))
				return
			}
			respondLedgerErr(d, err)
			return
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Purchase Successful").
			WithColor(int(ColorGreen)).
			WithDescription(fmt.Sprintf("You bought **%v** for **%v** coins!\nNew balance: **%v** coins", it.Name, it.Price, balance))
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newLevelSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "level").
		Type(discordgo.ChatApplicationCommand).
		Description("Show your or another user's level").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The user to check instead of yourself",
		})

	run := func(d *discord.DiscordApplicationCommand) {
		acct := m.acct(d)
		if opt, ok := d.Options("user"); ok {
			acct.UserID = opt.UserValue(d.Sess.Real()).ID
		}

		ctx := context.Background()
		xp, err := m.ledger().Get(ctx, acct, CounterXP)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}
		points, err := m.ledger().Get(ctx, acct, CounterSkillPoints)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}
		streak, err := m.ledger().Get(ctx, acct, CounterDailyStreak)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}
		unlocked, err := m.b.db.Unlocked(ctx, acct)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		level := LevelAt(xp)
		embed := builders.NewEmbedBuilder().
			WithTitle("Level").
			WithOkColor().
			WithDescription(fmt.Sprintf("<@%v>\n%v", acct.UserID, progressBar(xp, level))).
			AddField("Level", fmt.Sprintf("%v", level), true).
			AddField("XP", fmt.Sprintf("%v / %v", xp, XPForLevel(level+1)), true).
			AddField("Skill Points", fmt.Sprintf("%v", points), true).
			AddField("Daily Streak", fmt.Sprintf("%v days", streak), true).
			AddField("Achievements", fmt.Sprintf("%v/%v", len(unlocked), len(Achievements)), true)
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

// progressBar renders progress toward the next level as a 20 step bar.
func progressBar(xp, level int64) string {
	floor, ceil := XPForLevel(level), XPForLevel(level+1)
	filled := int(20 * (xp - floor) / (ceil - floor))
	if filled < 0 {
		filled = 0
	}
	if filled > 20 {
		filled = 20
	}
	return "`" + strings.Repeat("█", filled) + strings.Repeat("░", 20-filled) + "`"
}

func newSkillsSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "skills").
		Type(discordgo.ChatApplicationCommand).
		Description("Show your skill trees").
		NoDM()

	run := func(d *discord.DiscordApplicationCommand) {
		acct := m.acct(d)
		ctx := context.Background()

		points, err := m.ledger().Get(ctx, acct, CounterSkillPoints)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		trees := map[string]*strings.Builder{}
		var order []string
		for _, sk := range Skills {
			level, err := m.ledger().Get(ctx, acct, sk.CounterName())
			if err != nil {
				respondLedgerErr(d, err)
				return
			}
			text, ok := trees[sk.Tree]
			if !ok {
				text = &strings.Builder{}
				trees[sk.Tree] = text
				order = append(order, sk.Tree)
			}
			text.WriteString(fmt.Sprintf("**%v** (Lv. %v/%v, %v points) - %v\n",
				sk.Name, level, sk.MaxLevel, sk.Cost, sk.Effect))
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Skills").
			WithOkColor().
			WithDescription(fmt.Sprintf("**Available Skill Points:** %v\nUse `/skillup` to upgrade a skill.", points))
		for _, tree := range order {
			embed.AddField(tree, trees[tree].String(), false)
		}
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newSkillUpSlash(m *module) *bot.ModuleApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(Skills))
	for _, sk := range Skills {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%v: %v", sk.Tree, sk.Name),
			Value: sk.ID,
		})
	}

	cmd := bot.NewModuleApplicationCommandBuilder(m, "skillup").
		Type(discordgo.ChatApplicationCommand).
		Description("Upgrade a skill").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "skill",
			Description: "The skill to upgrade",
			Required:    true,
			Choices:     choices,
		})

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())

		skillOpt, ok := d.Options("skill")
		if !ok {
			d.Respond("Skill not found")
			return
		}
		sk := SkillByID(skillOpt.StringValue())
		if sk == nil {
			d.Respond("Unknown skill.")
			return
		}

		acct := m.acct(d)
		ctx := context.Background()

		level, err := m.ledger().Get(ctx, acct, sk.CounterName())
		if err != nil {
			respondLedgerErr(d, err)
			return
		}
		if level >= sk.MaxLevel {
			d.Respond(fmt.Sprintf("%v is already at maximum level.", sk.Name))
			return
		}

		points, level, err := upgradeSkill(ctx, m.ledger(), acct, sk)
		if err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				d.Respond(fmt.Sprintf("You need **%v** skill points to upgrade %v.", sk.Cost, sk.Name))
				return
			}
			respondLedgerErr(d, err)
			return
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Skill Upgraded!").
			WithColor(int(ColorGreen)).
			WithDescription(fmt.Sprintf("**%v** upgraded to level **%v**!\n**Effect:** %v\n**Remaining Points:** %v",
				sk.Name, level, sk.Effect, points))
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newAchievementsSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "achievements").
		Type(discordgo.ChatApplicationCommand).
		Description("Show your achievements").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The user to check instead of yourself",
		})

	run := func(d *discord.DiscordApplicationCommand) {
		acct := m.acct(d)
		if opt, ok := d.Options("user"); ok {
			acct.UserID = opt.UserValue(d.Sess.Real()).ID
		}

		ids, err := m.b.db.Unlocked(context.Background(), acct)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		have := make(map[string]bool, len(ids))
		for _, id := range ids {
			have[id] = true
		}

		var unlocked, locked []string
		for _, a := range Achievements {
			if have[a.ID] {
				unlocked = append(unlocked, fmt.Sprintf("%v **%v** - %v (+%v XP)", a.Icon, a.Name, a.Description, a.BonusXP))
			} else {
				locked = append(locked, fmt.Sprintf("🔒 **%v** - %v", a.Name, a.Description))
			}
		}

		embed := builders.NewEmbedBuilder().
			WithTitle("Achievements").
			WithOkColor().
			WithDescription(fmt.Sprintf("<@%v> has unlocked %v/%v achievements", acct.UserID, len(unlocked), len(Achievements)))
		if len(unlocked) > 0 {
			embed.AddField("Unlocked", strings.Join(unlocked, "\n"), false)
		}
		if len(locked) > 0 {
			embed.AddField("Locked", strings.Join(locked, "\n"), false)
		}
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newLeaderboardSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "leaderboard").
		Type(discordgo.ChatApplicationCommand).
		Description("Show the server leaderboard").
		NoDM().
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "board",
			Description: "The board to show",
			Required:    true,
			Choices: []*discordgo.ApplicationCommandOptionChoice{
				{Name: "Coins", Value: CounterBalance},
				{Name: "Levels", Value: CounterXP},
			},
		})

	run := func(d *discord.DiscordApplicationCommand) {
		boardOpt, ok := d.Options("board")
		if !ok {
			d.Respond("Board not found")
			return
		}
		board := boardOpt.StringValue()

		rows, err := m.b.db.TopCounters(context.Background(), d.GuildID(), board, leaderboardLimit)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}
		if len(rows) == 0 {
			d.Respond("Nobody is on this board yet.")
			return
		}

		text := strings.Builder{}
		for i, row := range rows {
			switch board {
			case CounterXP:
				text.WriteString(fmt.Sprintf("%v <@%v> - level %v (%v xp)\n", medal(i+1), row.UserID, LevelAt(row.Value), row.Value))
			default:
				text.WriteString(fmt.Sprintf("%v <@%v> - %v coins\n", medal(i+1), row.UserID, row.Value))
			}
		}

		title := "Richest Users"
		if board == CounterXP {
			title = "Level Leaderboard"
		}
		embed := builders.NewEmbedBuilder().
			WithTitle(title).
			WithColor(int(ColorGold)).
			WithDescription(text.String())
		d.RespondEmbed(embed.Build())
	}

	return cmd.Execute(run).Build()
}

func newSetBalanceSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "setbalance").
		Type(discordgo.ChatApplicationCommand).
		Description("Set a user's coin balance").
		NoDM().
		Permissions(discordgo.PermissionAdministrator).
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "The user to set the balance for",
			Required:    true,
		}).
		AddOption(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "amount",
			Description: "The new balance",
			Required:    true,
			MinValue:    func() *float64 { v := 0.0; return &v }(),
		})

	run := func(d *discord.DiscordApplicationCommand) {
		m.b.notifier.bind(d.Sess.Real())

		userOpt, ok := d.Options("user")
		if !ok {
			d.Respond("User not found")
			return
		}
		amountOpt, ok := d.Options("amount")
		if !ok {
			d.Respond("Amount not found")
			return
		}

		target := userOpt.UserValue(d.Sess.Real())
		amount := amountOpt.IntValue()
		if target == nil || amount < 0 {
			d.Respond("Please pick a user and a non-negative amount.")
			return
		}

		acct := Account{UserID: target.ID, GuildID: d.GuildID()}
		previous, err := m.ledger().Set(context.Background(), acct, CounterBalance, amount)
		if err != nil {
			respondLedgerErr(d, err)
			return
		}

		d.Respond(fmt.Sprintf("Set %v's balance from %v to %v coins.", target.Mention(), previous, amount))
	}

	return cmd.Execute(run).Build()
}

func newSettingsSlash(m *module) *bot.ModuleApplicationCommand {
	cmd := bot.NewModuleApplicationCommandBuilder(m, "settings").
		Type(discordgo.ChatApplicationCommand).
		Description("View or set the leveling settings").
		NoDM().
		Permissions(discordgo.PermissionAdministrator).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "view",
			Description: "View the current settings",
		}).
		AddSubcommand(&discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "set",
			Description: "Set a setting",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to send level ups and achievements to",
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "xp_rate",
					Description: "The message xp multiplier",
				},
			},
		})

	run := func(d *discord.DiscordApplicationCommand) {
		gc, err := m.b.db.GetGuild(context.Background(), d.GuildID())
		if err != nil {
			d.Respond("Failed to get guild config")
			return
		}

		if _, ok := d.Options("view"); ok {
			d.RespondEmbed(generateLevelSettingsEmbed(gc))
			return
		} else if _, ok := d.Options("set"); ok {
			if chOpt, ok := d.Options("set:channel"); ok {
				ch := chOpt.ChannelValue(d.Sess.Real())
				if ch == nil {
					d.Respond("Channel not found")
					return
				}
				gc.LevelLog = ch.ID
			}
			if rateOpt, ok := d.Options("set:xp_rate"); ok {
				rate := rateOpt.FloatValue()
				if rate <= 0 || rate > 10 {
					d.Respond("The xp rate must be between 0 and 10.")
					return
				}
				gc.XPRate = rate
			}

			if err := m.b.db.UpdateGuild(context.Background(), d.GuildID(), gc); err != nil {
				d.Respond("Failed to update server config")
				return
			}

			embed := generateLevelSettingsEmbed(gc)
			embed.Title = "Updated settings"

			resp := &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
				Flags:  discordgo.MessageFlagsEphemeral,
			}
			d.RespondComplex(resp, discordgo.InteractionResponseChannelMessageWithSource)
			return
		}
	}

	return cmd.Execute(run).Build()
}

func generateLevelSettingsEmbed(gc *Guild) *discordgo.MessageEmbed {
	levelLog := "Not set"
	if gc.LevelLog != "" {
		levelLog = fmt.Sprintf("<#%v>", gc.LevelLog)
	}

	embed := builders.NewEmbedBuilder().
		WithTitle("Settings").
		WithOkColor().
		AddField("Level log", levelLog, true).
		AddField("XP rate", fmt.Sprintf("%.1fx", gc.XPRate), true)

	return embed.Build()
}
