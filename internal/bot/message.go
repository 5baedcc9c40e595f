package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/s33g/lumin/internal/chat"
)

// reply streams the assistant's answer to text into channelID
func (b *Bot) reply(ctx context.Context, out messenger, channelID, userID, username, text string) {
	cfg := b.GetConfig()
	logger := b.logger.With().Str("channel", channelID).Str("user", username).Logger()

	result, err := b.rateLimiter.Allow(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Msg("Rate limit check failed")
		out.ChannelMessageSend(channelID, "❌ Failed to check rate limits")
		return
	}
	if !result.Allowed {
		out.ChannelMessageSend(channelID, fmt.Sprintf("⏳ Rate limited. Try again in %s.", result.RetryAfter.Round(time.Second)))
		return
	}

	sess, err := b.sessions.Get(ctx, channelID, cfg.Model.SystemPrompt, cfg.Model.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load conversation")
		out.ChannelMessageSend(channelID, "❌ Failed to load conversation history")
		return
	}

	out.ChannelTyping(channelID)

	writer := newReplyWriter(out, channelID, cfg.Discord.EditInterval())
	if err := writer.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to send message")
		return
	}

	turn, err := b.chat.Ask(ctx, sess, text, writer.Handle)
	if errors.Is(err, chat.ErrNoCredential) {
		logger.Error().Err(err).Msg("Cannot answer")
	}
	if ferr := writer.Finish(err); ferr != nil {
		logger.Error().Err(ferr).Msg("Failed to update reply")
	}

	logger.Debug().
		Int("tokens", turn.Tokens).
		Int("messages", len(writer.messageIDs)).
		Msg("Reply sent")
}
