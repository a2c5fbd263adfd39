package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/opswatch/coalmine/internal/canary"
)

// DiscordConfig configures the optional Discord notifier transport: a bot
// token plus the channel to post late/recovery embeds into.
type DiscordConfig struct {
	BotToken  string
	ChannelID string
}

// DiscordNotifier posts a short embed to a configured channel via a
// discordgo bot session. Grounded on the teacher's discord.go session
// construction (discordgo.New("Bot "+token)) and
// ChannelMessageSendComplex calls, trimmed to the one outbound
// notification this domain needs — no gateway connection, presence, or
// message receiving.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier opens a discordgo session scoped to posting messages;
// it never calls session.Open, since this transport only ever sends and
// has no need for the Discord gateway connection.
func NewDiscordNotifier(cfg DiscordConfig) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("notifier: discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: cfg.ChannelID}, nil
}

func (d *DiscordNotifier) Notify(_ context.Context, c *canary.Canary, kind Kind) error {
	color := 0xE04F5F
	if kind == Recovered {
		color = 0x3FA34D
	}
	embed := &discordgo.MessageEmbed{
		Title:       Subject(c, kind),
		Description: Body(c, kind),
		Color:       color,
	}
	_, err := d.session.ChannelMessageSendEmbed(d.channelID, embed)
	return err
}
