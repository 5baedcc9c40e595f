package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/s33g/lumin/internal/llm"
)

type section int

const (
	sectionNone section = iota
	sectionReasoning
	sectionContent
)

// Renderer writes stream events to a terminal as they arrive: reasoning
// dimmed under a header, then the answer in plain text.
type Renderer struct {
	w       io.Writer
	section section
	failed  bool
}

// NewRenderer creates a renderer writing to w
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Render writes one event
func (r *Renderer) Render(ev llm.Event) {
	switch ev.Type {
	case llm.EventReasoningDelta:
		if r.section != sectionReasoning {
			r.enter(sectionReasoning)
			fmt.Fprintln(r.w, headerStyle.Render("Thinking"))
		}
		io.WriteString(r.w, paint(reasoningStyle, ev.Text))
	case llm.EventContentDelta:
		if r.section != sectionContent {
			r.enter(sectionContent)
		}
		io.WriteString(r.w, ev.Text)
	case llm.EventError:
		r.failed = true
		r.enter(sectionNone)
		if errors.Is(ev.Err, context.Canceled) {
			fmt.Fprintln(r.w, warningStyle.Render("[Cancelled]"))
			return
		}
		fmt.Fprintf(r.w, "%s %s\n", errorStyle.Render("[Error]"), ev.Text)
	}
}

// Failed reports whether an error event was rendered
func (r *Renderer) Failed() bool {
	return r.failed
}

// Finish ends the current section
func (r *Renderer) Finish() {
	r.enter(sectionNone)
}

func (r *Renderer) enter(next section) {
	if r.section != sectionNone {
		io.WriteString(r.w, "\n")
		if next != sectionNone {
			io.WriteString(r.w, "\n")
		}
	}
	r.section = next
}
