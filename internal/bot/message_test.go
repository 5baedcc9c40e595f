package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/s33g/lumin/internal/chat"
	"github.com/s33g/lumin/internal/config"
	"github.com/s33g/lumin/internal/conversation"
	"github.com/s33g/lumin/internal/llm"
	"github.com/s33g/lumin/internal/ratelimit"
	"github.com/s33g/lumin/internal/storage"
)

func frame(field, text string) string {
	b, _ := json.Marshal(text)
	return fmt.Sprintf(`data: {"choices":[{"delta":{%q:%s}}]}`+"\n\n", field, b)
}

type testBot struct {
	*Bot
	store *conversation.RedisStore
	mr    *miniredis.Miniredis
}

func newTestBot(t *testing.T, handler http.HandlerFunc) *testBot {
	t.Helper()
	ctx := context.Background()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	mr := miniredis.RunT(t)
	client := storage.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { client.Close() })

	cfg := config.DefaultConfig()
	cfg.OpenRouter.BaseURL = server.URL
	cfg.Model.SystemPrompt = "You are a test."
	cfg.Discord.Token = "token"
	cfg.Discord.Channels = []string{"chan"}
	cfg.Discord.EditIntervalMillis = 0
	cfg.RateLimit = config.RateLimit{RequestsPerMinute: 2}

	limiter, err := ratelimit.NewLimiter(ctx, client, cfg.RateLimit)
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	store := conversation.NewRedisStore(client, cfg.Session.TTL(), cfg.Session.HistoryLimit)
	service := chat.NewService(llm.NewClient(cfg.OpenRouter, zerolog.Nop()),
		llm.SettingsFromConfig(cfg.Model, cfg.Stream), "key", zerolog.Nop())

	b := newBot(cfg, service, newSessionRegistry(store, nil), limiter, zerolog.Nop())
	t.Cleanup(b.cancel)
	return &testBot{Bot: b, store: store, mr: mr}
}

func answering(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, frame("reasoning", "thinking"))
		io.WriteString(w, frame("content", text))
		io.WriteString(w, "data: [DONE]\n\n")
	}
}

func TestReply(t *testing.T) {
	b := newTestBot(t, answering("Hi there!"))
	out := newFakeMessenger()

	b.reply(context.Background(), out, "chan", "u1", "alice", "hello")

	if got := out.contents(); len(got) != 1 || got[0] != "Hi there!" {
		t.Errorf("contents = %q", got)
	}
	if out.typing != 1 {
		t.Errorf("typing = %d, want 1", out.typing)
	}

	stored, err := b.store.Load(context.Background(), "chan")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(stored) != 2 || stored[0].Content != "hello" || stored[1].Reasoning != "thinking" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestReply_ResumesStoredConversation(t *testing.T) {
	var got llm.ChatRequest
	b := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, frame("content", "again"))
	})

	ctx := context.Background()
	b.store.Append(ctx, "chan", conversation.Turn{Role: conversation.RoleUser, Content: "earlier"})
	b.store.Append(ctx, "chan", conversation.Turn{Role: conversation.RoleAssistant, Content: "reply"})

	b.reply(ctx, newFakeMessenger(), "chan", "u1", "alice", "now")

	want := []string{"You are a test.", "earlier", "reply", "now"}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages = %+v", got.Messages)
	}
	for i, m := range got.Messages {
		if m.Content != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestReply_RateLimited(t *testing.T) {
	b := newTestBot(t, answering("ok"))
	out := newFakeMessenger()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.reply(ctx, out, "chan", "u1", "alice", "hello")
	}

	got := out.contents()
	if len(got) != 3 || !strings.HasPrefix(got[2], "⏳ Rate limited") {
		t.Errorf("contents = %q", got)
	}
}

func TestReply_UpstreamError(t *testing.T) {
	b := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"Rate limit exceeded","code":429}}`)
	})
	out := newFakeMessenger()

	b.reply(context.Background(), out, "chan", "u1", "alice", "hello")

	got := out.contents()
	if len(got) != 1 || !strings.Contains(got[0], "API error (429): Rate limit exceeded") {
		t.Errorf("contents = %q", got)
	}
}

func TestReload(t *testing.T) {
	b := newTestBot(t, answering("ok"))

	cfg := config.DefaultConfig()
	cfg.Discord.Token = "token"
	cfg.Discord.Channels = []string{"other"}
	cfg.Model.ID = "deepseek/deepseek-r1"

	if err := b.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if b.chat.Settings().Model != "deepseek/deepseek-r1" {
		t.Errorf("model = %s", b.chat.Settings().Model)
	}
	if !b.GetConfig().Discord.AllowsChannel("other") {
		t.Error("config not swapped")
	}

	cfg.Discord.Channels = nil
	if err := b.Reload(cfg); err == nil {
		t.Error("Reload() should reject an invalid configuration")
	}
}

func TestDescribeModel(t *testing.T) {
	got := describeModel(config.ModelConfig{
		ID:          "deepseek/deepseek-r1",
		Temperature: 0.6,
		TopP:        1,
		Provider:    "Fireworks",
		Reasoning:   true,
	})

	for _, want := range []string{"`deepseek/deepseek-r1`", "Provider: Fireworks", "Temperature: 0.6", "Reasoning: on"} {
		if !strings.Contains(got, want) {
			t.Errorf("describeModel() missing %q:\n%s", want, got)
		}
	}
}
