package ppt

import (
	"context"
	"fmt"
	"strings"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
)

// noteRole maps a page type to the rhetorical role its speech notes play.
func noteRole(pt model.PageType) string {
	switch pt {
	case model.PageTypeTitle:
		return "opener"
	case model.PageTypeSection:
		return "transition"
	case model.PageTypeConclusion:
		return "closer"
	default:
		return "explainer"
	}
}

// GenerateSpeechNotes produces 150-300 words of speaker notes for one
// slide. Kept as a call separate from the slide copy so a malformed notes
// response can never corrupt the slide HTML.
func (a *PageAgent) GenerateSpeechNotes(ctx context.Context, spec model.PageSpec, g model.GlobalContext) (string, error) {
	if !a.llm.IsConfigured() {
		return fallbackNotes(spec, g), nil
	}

	system := "You are a speech coach writing speaker notes. Reply with the notes as plain prose, nothing else."
	var b strings.Builder
	fmt.Fprintf(&b, "Talk: %s. Scene: %s.\n", g.Title, g.SpeechScene)
	fmt.Fprintf(&b, "Slide %d of %d (%s slide, role: %s): %s\n", spec.SlideNumber, g.TotalSlides, spec.PageType, noteRole(spec.PageType), spec.Topic)
	for _, p := range spec.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\nWrite 150-300 words the speaker says while this slide is up.")

	notes, err := a.llm.ChatCompletion(ctx, system, b.String(), client.ChatOptions{Temperature: 0.8, MaxTokens: 600})
	if err != nil {
		a.logger.Warn("speech notes LLM call failed", "slide", spec.SlideNumber, "error", err)
		return fallbackNotes(spec, g), nil
	}
	return strings.TrimSpace(notes), nil
}

func fallbackNotes(spec model.PageSpec, g model.GlobalContext) string {
	var b strings.Builder
	switch noteRole(spec.PageType) {
	case "opener":
		fmt.Fprintf(&b, "Welcome the audience and introduce the talk: %s. ", g.Title)
	case "transition":
		fmt.Fprintf(&b, "Bridge into the next part: %s. ", spec.Topic)
	case "closer":
		fmt.Fprintf(&b, "Wrap up and restate the core message of %s. ", g.Title)
	default:
		fmt.Fprintf(&b, "Walk through %s. ", spec.Topic)
	}
	for _, p := range spec.KeyPoints {
		fmt.Fprintf(&b, "Cover: %s. ", p)
	}
	return b.String()
}
