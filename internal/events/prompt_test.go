package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPrompterAskRespond(t *testing.T) {
	var rec *Recorder
	var p *Prompter
	rec = NewRecorder(func(e Event) {
		if e.Type != EventPromptRequest {
			return
		}
		req, _ := GetPromptRequestPayload(e)
		go p.Respond(PromptResponsePayload{Token: req.Token, Value: "blue"})
	})
	p = NewPrompter(rec)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	answer, err := p.Ask(ctx, "th", "favourite colour?")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "blue" {
		t.Errorf("expected blue, got %q", answer)
	}
	if p.Pending() != 0 {
		t.Errorf("expected no pending prompts, got %d", p.Pending())
	}
	reqs := rec.OfType(EventPromptRequest)
	if len(reqs) != 1 || reqs[0].ThreadID != "th" {
		t.Fatalf("expected one prompt request on thread th, got %+v", reqs)
	}
}

func TestPrompterCancelled(t *testing.T) {
	var p *Prompter
	p = NewPrompter(NewRecorder(func(e Event) {
		req, _ := GetPromptRequestPayload(e)
		go p.Respond(PromptResponsePayload{Token: req.Token, Cancelled: true})
	}))

	_, err := p.Ask(context.Background(), "th", "continue?")
	if !errors.Is(err, ErrPromptCancelled) {
		t.Errorf("expected ErrPromptCancelled, got %v", err)
	}
}

func TestPrompterContextDone(t *testing.T) {
	p := NewPrompter(NewRecorder(nil))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Ask(ctx, "th", "anyone?"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if p.Respond(PromptResponsePayload{Token: "unknown"}) {
		t.Error("expected Respond on unknown token to report false")
	}
}
