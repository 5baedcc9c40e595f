package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// handleInteractionCreate handles slash commands
func (b *Bot) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	b.handleCommand(s, i)
}

// handleCommand routes slash commands to their handlers
func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	cmdName := i.ApplicationCommandData().Name

	switch cmdName {
	case "reset":
		b.handleReset(s, i)
	case "stop":
		b.handleStop(s, i)
	case "model":
		b.handleModel(s, i)
	case "reload":
		b.handleReload(s, i)
	default:
		b.respondError(s, i, "Unknown command")
	}
}

// handleMessageCreate answers messages in the configured channels
func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	if !b.GetConfig().Discord.AllowsChannel(m.ChannelID) {
		return
	}

	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}

	b.reply(b.ctx, s, m.ChannelID, m.Author.ID, m.Author.Username, text)
}

func (b *Bot) respondMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) respondError(s *discordgo.Session, i *discordgo.InteractionCreate, errMsg string) {
	b.respondMessage(s, i, "❌ "+errMsg)
}

// interactionUser returns the invoking user for guild and DM interactions
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
