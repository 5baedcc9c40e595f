package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/s33g/lumin/internal/llm"
)

// maxMessageLength is Discord's per-message character limit
const maxMessageLength = 2000

// reasoningPreview caps how much of the reasoning trace is shown while
// no answer text has arrived
const reasoningPreview = 1500

const placeholder = "⏳"

// messenger is the part of *discordgo.Session used to post replies
type messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// replyWriter renders a streaming reply into one or more Discord messages,
// editing them at most once per interval.
type replyWriter struct {
	out       messenger
	channelID string
	interval  time.Duration
	now       func() time.Time

	messageIDs []string
	posted     []string
	lastFlush  time.Time

	reasoning strings.Builder
	content   strings.Builder
	footer    string
}

func newReplyWriter(out messenger, channelID string, interval time.Duration) *replyWriter {
	return &replyWriter{
		out:       out,
		channelID: channelID,
		interval:  interval,
		now:       time.Now,
	}
}

// Start posts the placeholder message
func (w *replyWriter) Start() error {
	msg, err := w.out.ChannelMessageSend(w.channelID, placeholder)
	if err != nil {
		return err
	}
	w.messageIDs = append(w.messageIDs, msg.ID)
	w.posted = append(w.posted, placeholder)
	w.lastFlush = w.now()
	return nil
}

// Handle accumulates one event and flushes if the interval has passed
func (w *replyWriter) Handle(ev llm.Event) {
	switch ev.Type {
	case llm.EventReasoningDelta:
		w.reasoning.WriteString(ev.Text)
	case llm.EventContentDelta:
		w.content.WriteString(ev.Text)
	default:
		return
	}
	if w.now().Sub(w.lastFlush) >= w.interval {
		w.flush()
	}
}

// Finish writes the final state, noting err if the reply failed
func (w *replyWriter) Finish(err error) error {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		w.footer = "⏹️ Stopped."
	default:
		w.footer = "❌ " + err.Error()
	}
	return w.flush()
}

func (w *replyWriter) render() string {
	content := w.content.String()
	if strings.TrimSpace(content) != "" {
		return joinFooter(content, w.footer)
	}

	reasoning := strings.TrimSpace(w.reasoning.String())
	if reasoning == "" {
		if w.footer != "" {
			return w.footer
		}
		return placeholder
	}

	if r := []rune(reasoning); len(r) > reasoningPreview {
		reasoning = "…" + string(r[len(r)-reasoningPreview:])
	}
	return joinFooter("-# Thinking…\n"+quote(reasoning), w.footer)
}

// flush brings the posted messages in line with the rendered reply
func (w *replyWriter) flush() error {
	w.lastFlush = w.now()

	var firstErr error
	for i, chunk := range splitMessage(w.render(), maxMessageLength) {
		if i < len(w.messageIDs) {
			if w.posted[i] == chunk {
				continue
			}
			if _, err := w.out.ChannelMessageEdit(w.channelID, w.messageIDs[i], chunk); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			w.posted[i] = chunk
			continue
		}

		msg, err := w.out.ChannelMessageSend(w.channelID, chunk)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		w.messageIDs = append(w.messageIDs, msg.ID)
		w.posted = append(w.posted, chunk)
	}
	return firstErr
}

func joinFooter(text, footer string) string {
	if footer == "" {
		return text
	}
	return strings.TrimRight(text, "\n") + "\n\n" + footer
}

func quote(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

// splitMessage breaks text into chunks of at most limit characters,
// preferring to cut at a newline, then at a space.
func splitMessage(text string, limit int) []string {
	var chunks []string
	for text != "" {
		runes := []rune(text)
		if len(runes) <= limit {
			chunks = append(chunks, text)
			break
		}

		window := string(runes[:limit])
		cut := strings.LastIndex(window, "\n")
		if cut <= 0 {
			cut = strings.LastIndex(window, " ")
		}
		if cut <= 0 {
			chunks = append(chunks, window)
			text = text[len(window):]
			continue
		}

		chunks = append(chunks, window[:cut])
		// drop the separator itself
		text = text[cut+1:]
	}
	return chunks
}
