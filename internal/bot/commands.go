package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/s33g/lumin/internal/config"
)

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "reset",
		Description: "Forget the conversation in this channel",
	},
	{
		Name:        "stop",
		Description: "Stop the reply being written in this channel",
	},
	{
		Name:        "model",
		Description: "Show the model and settings in use",
	},
	{
		Name:        "reload",
		Description: "Reload bot configuration (requires Manage Server)",
	},
}

// registerCommands registers slash commands with Discord, for one guild
// when discord.guild_id is set and globally otherwise
func (b *Bot) registerCommands() error {
	guildID := b.GetConfig().Discord.GuildID

	for _, cmd := range commands {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, guildID, cmd)
		if err != nil {
			b.logger.Error().
				Err(err).
				Str("guild", guildID).
				Str("command", cmd.Name).
				Msg("Failed to register command")
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
	}

	b.logger.Info().
		Str("guild", guildID).
		Int("commands", len(commands)).
		Msg("Registered slash commands")
	return nil
}

// handleReset clears the channel's conversation
func (b *Bot) handleReset(s *discordgo.Session, i *discordgo.InteractionCreate) {
	cfg := b.GetConfig()
	if !cfg.Discord.AllowsChannel(i.ChannelID) {
		b.respondError(s, i, "I don't answer in this channel")
		return
	}

	sess, err := b.sessions.Get(b.ctx, i.ChannelID, cfg.Model.SystemPrompt, cfg.Model.ID)
	if err != nil {
		b.logger.Error().Err(err).Str("channel", i.ChannelID).Msg("Failed to load conversation")
		b.respondError(s, i, "Failed to load conversation")
		return
	}

	if err := sess.Reset(b.ctx); err != nil {
		b.logger.Error().Err(err).Str("channel", i.ChannelID).Msg("Failed to reset conversation")
		b.respondError(s, i, "Failed to clear the conversation")
		return
	}

	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "🧹 Conversation cleared.",
		},
	})

	b.logger.Info().
		Str("user", interactionUser(i).Username).
		Str("channel", i.ChannelID).
		Str("command", "reset").
		Msg("Conversation reset")
}

// handleStop cancels the reply in progress in the channel
func (b *Bot) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.sessions.Lookup(i.ChannelID)
	if !ok {
		b.respondMessage(s, i, "Nothing to stop.")
		return
	}
	sess.Cancel()
	b.respondMessage(s, i, "⏹️ Stopping.")
}

// handleModel shows the model and sampling settings
func (b *Bot) handleModel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.respondMessage(s, i, describeModel(b.GetConfig().Model))
}

func describeModel(m config.ModelConfig) string {
	var sb strings.Builder
	sb.WriteString("**Model**\n\n")
	sb.WriteString(fmt.Sprintf("• `%s`\n", m.ID))
	if m.Provider != "" {
		sb.WriteString(fmt.Sprintf("  - Provider: %s\n", m.Provider))
	}
	sb.WriteString(fmt.Sprintf("  - Temperature: %g, top_p: %g, top_k: %d, min_p: %g\n", m.Temperature, m.TopP, m.TopK, m.MinP))
	reasoning := "off"
	if m.Reasoning {
		reasoning = "on"
	}
	sb.WriteString(fmt.Sprintf("  - Reasoning: %s\n", reasoning))
	return sb.String()
}

// handleReload reloads the configuration
func (b *Bot) handleReload(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil || i.Member.Permissions&discordgo.PermissionManageServer == 0 {
		b.respondError(s, i, "You need the Manage Server permission to reload the configuration")
		return
	}
	if b.configPath == "" {
		b.respondError(s, i, "No configuration file to reload")
		return
	}

	newCfg, err := config.Load(b.configPath)
	if err == nil {
		err = b.Reload(newCfg)
	}
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to reload config")
		b.respondError(s, i, fmt.Sprintf("Failed to reload configuration: %v", err))
		return
	}

	b.respondMessage(s, i, "✅ Configuration reloaded successfully")

	b.logger.Info().
		Str("user", interactionUser(i).Username).
		Str("command", "reload").
		Msg("Configuration reloaded")
}
