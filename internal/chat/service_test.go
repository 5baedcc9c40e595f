package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/s33g/lumin/internal/config"
	"github.com/s33g/lumin/internal/conversation"
	"github.com/s33g/lumin/internal/llm"
	"github.com/s33g/lumin/internal/metrics"
)

func frame(field, text string) string {
	b, _ := json.Marshal(text)
	return fmt.Sprintf(`data: {"choices":[{"delta":{%q:%s}}]}`+"\n\n", field, b)
}

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := llm.NewClient(config.OpenRouterConfig{BaseURL: server.URL}, zerolog.Nop())
	svc := NewService(client, llm.Settings{Model: "test-model", Reasoning: true}, "key", zerolog.Nop(),
		WithMetrics(metrics.NewStreamMetrics(prometheus.NewRegistry())))
	return svc, server
}

func TestService_Ask(t *testing.T) {
	var gotReq llm.ChatRequest
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		io.WriteString(w, frame("reasoning", "Greeting."))
		io.WriteString(w, frame("content", "Hi "))
		io.WriteString(w, frame("content", "there"))
		io.WriteString(w, "data: [DONE]\n\n")
	})

	sess := conversation.NewSession("s1", "sys")
	var seen []llm.Event
	turn, err := svc.Ask(context.Background(), sess, "hello", func(ev llm.Event) {
		seen = append(seen, ev)
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if turn.Content != "Hi there" || turn.Reasoning != "Greeting." {
		t.Errorf("turn = %+v", turn)
	}
	if len(seen) != 3 || seen[0].Type != llm.EventReasoningDelta {
		t.Errorf("events = %+v", seen)
	}

	if gotReq.Model != "test-model" || !gotReq.Stream || len(gotReq.Messages) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.Messages[1] != (llm.Message{Role: "user", Content: "hello"}) {
		t.Errorf("last message = %+v", gotReq.Messages[1])
	}

	if n := len(sess.History()); n != 3 {
		t.Errorf("history has %d turns, want 3", n)
	}
}

func TestService_AskReplaysHistory(t *testing.T) {
	var calls atomic.Int32
	var second llm.ChatRequest
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 2 {
			json.NewDecoder(r.Body).Decode(&second)
		}
		io.WriteString(w, frame("reasoning", "hidden"))
		io.WriteString(w, frame("content", "answer"))
		io.WriteString(w, "data: [DONE]\n\n")
	})

	sess := conversation.NewSession("s1", "")
	ctx := context.Background()
	svc.Ask(ctx, sess, "one", nil)
	svc.Ask(ctx, sess, "two", nil)

	want := []llm.Message{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "answer"},
		{Role: "user", Content: "two"},
	}
	if len(second.Messages) != len(want) {
		t.Fatalf("messages = %+v", second.Messages)
	}
	for i := range want {
		if second.Messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, second.Messages[i], want[i])
		}
	}
}

func TestService_AskHTTPError(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"No auth credentials found","code":401}}`)
	})

	sess := conversation.NewSession("s1", "")
	turn, err := svc.Ask(context.Background(), sess, "hello", nil)

	var te *llm.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Ask() error = %v, want 401 TransportError", err)
	}
	if Outcome(te) != OutcomeAuth {
		t.Errorf("Outcome() = %s, want %s", Outcome(te), OutcomeAuth)
	}
	if turn.Role != conversation.RoleAssistant || turn.Content != "" {
		t.Errorf("turn = %+v", turn)
	}
	if n := len(sess.History()); n != 2 {
		t.Errorf("history has %d turns, want 2", n)
	}
}

func TestService_AskKeepsPartialOnTruncation(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, frame("content", "half"))
	})
	svc.Update(llm.Settings{Model: "m", RequireDone: true}, "key")

	turn, err := svc.Ask(context.Background(), conversation.NewSession("s1", ""), "q", nil)
	if !errors.Is(err, llm.ErrTruncated) {
		t.Fatalf("Ask() error = %v, want ErrTruncated", err)
	}
	if turn.Content != "half" {
		t.Errorf("Content = %q, want half", turn.Content)
	}
}

func TestService_AskNoCredential(t *testing.T) {
	var calls atomic.Int32
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	svc.Update(svc.Settings(), "")

	sess := conversation.NewSession("s1", "")
	if _, err := svc.Ask(context.Background(), sess, "q", nil); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Ask() error = %v, want ErrNoCredential", err)
	}
	if calls.Load() != 0 {
		t.Error("no request should be made without a credential")
	}
	if n := len(sess.History()); n != 0 {
		t.Errorf("history has %d turns, want 0", n)
	}
}

func TestService_AskCancel(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, frame("content", "start"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	sess := conversation.NewSession("s1", "")
	type result struct {
		turn conversation.Turn
		err  error
	}
	done := make(chan result)
	go func() {
		turn, err := svc.Ask(context.Background(), sess, "q", func(ev llm.Event) {
			if ev.Type == llm.EventContentDelta {
				sess.Cancel()
			}
		})
		done <- result{turn, err}
	}()

	select {
	case res := <-done:
		if Outcome(res.err) != OutcomeCancelled {
			t.Errorf("Ask() error = %v, want cancellation", res.err)
		}
		if res.turn.Content != "start" {
			t.Errorf("Content = %q, want start", res.turn.Content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Ask() did not return after Cancel()")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, OutcomeOK},
		{"cancelled", &llm.TransportError{Message: "request cancelled", Err: context.Canceled}, OutcomeCancelled},
		{"truncated", llm.ErrTruncated, OutcomeTruncated},
		{"forbidden", &llm.TransportError{StatusCode: http.StatusForbidden}, OutcomeAuth},
		{"server", &llm.TransportError{StatusCode: http.StatusBadGateway}, OutcomeError},
		{"other", errors.New("x"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome() = %s, want %s", got, tt.want)
			}
		})
	}
}
