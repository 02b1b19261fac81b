package ppt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// DesignCoordinator produces the deck-wide DesignSpec with a single LLM call
// after the outline is known. The LLM is advisory: anything that does not
// validate falls back to the per-style default table, so visual regressions
// stay isolated from model drift.
type DesignCoordinator struct {
	llm    *client.LLMClient
	logger *slog.Logger
}

// NewDesignCoordinator creates a design coordinator.
func NewDesignCoordinator(llm *client.LLMClient, logger *slog.Logger) *DesignCoordinator {
	return &DesignCoordinator{llm: llm, logger: logger}
}

// GenerateDesign returns the DesignSpec for the deck and whether the default
// table was used instead of an LLM-produced spec.
func (d *DesignCoordinator) GenerateDesign(ctx context.Context, topic string, outline []string, style model.PPTStyle) (model.DesignSpec, bool) {
	if !d.llm.IsConfigured() {
		d.logger.Info("design coordinator using default spec", "style", style, "design_fallback", true)
		return DefaultDesignSpec(style), true
	}

	system := "You are a presentation visual designer. Reply with a single JSON object and nothing else."
	user := designPrompt(topic, outline, style)

	// High temperature on purpose: topic-relevant palettes beat safe ones.
	raw, err := d.llm.ChatCompletion(ctx, system, user, client.ChatOptions{Temperature: 0.9, MaxTokens: 1024})
	if err != nil {
		d.logger.Warn("design coordinator LLM call failed", "error", err, "design_fallback", true)
		return DefaultDesignSpec(style), true
	}

	var spec model.DesignSpec
	if err := json.Unmarshal([]byte(client.StripJSONFences(raw)), &spec); err != nil {
		d.logger.Warn("design spec did not parse", "error", err, "design_fallback", true)
		return DefaultDesignSpec(style), true
	}
	if err := ValidateDesignSpec(&spec); err != nil {
		d.logger.Warn("design spec failed validation", "error", err, "design_fallback", true)
		return DefaultDesignSpec(style), true
	}

	d.logger.Info("design spec generated", "style", style, "primary", spec.PrimaryColor)
	return spec, false
}

// ValidateDesignSpec checks the hard constraints of a DesignSpec: six
// well-formed hex colors, exactly five chart colors, font sizes in range.
func ValidateDesignSpec(spec *model.DesignSpec) error {
	colors := map[string]string{
		"primaryColor":       spec.PrimaryColor,
		"secondaryColor":     spec.SecondaryColor,
		"accentColor":        spec.AccentColor,
		"backgroundColor":    spec.BackgroundColor,
		"textColor":          spec.TextColor,
		"textSecondaryColor": spec.TextSecondaryColor,
	}
	for name, c := range colors {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("invalid %s: %q", name, c)
		}
	}
	if len(spec.ChartColors) != 5 {
		return fmt.Errorf("chartColors must have 5 entries, got %d", len(spec.ChartColors))
	}
	for i, c := range spec.ChartColors {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("invalid chartColors[%d]: %q", i, c)
		}
	}
	if spec.TitleFontSize < 20 || spec.TitleFontSize > 80 {
		return fmt.Errorf("titleFontSize out of range: %d", spec.TitleFontSize)
	}
	if spec.ContentFontSize < 14 || spec.ContentFontSize > 40 {
		return fmt.Errorf("contentFontSize out of range: %d", spec.ContentFontSize)
	}
	if spec.FontFamily == "" {
		return fmt.Errorf("fontFamily is empty")
	}
	return nil
}

// DefaultDesignSpec returns the hard-coded per-style spec used when the LLM
// output is unusable.
func DefaultDesignSpec(style model.PPTStyle) model.DesignSpec {
	switch style {
	case model.PPTStyleTED:
		return model.DesignSpec{
			PrimaryColor:       "#e62b1e",
			SecondaryColor:     "#1a1a1a",
			AccentColor:        "#ff6f61",
			BackgroundColor:    "#0d0d0d",
			TextColor:          "#ffffff",
			TextSecondaryColor: "#bbbbbb",
			TitleFontSize:      54,
			ContentFontSize:    26,
			FontFamily:         "Helvetica Neue, Arial, sans-serif",
			LayoutStyle:        "dramatic",
			Spacing:            "airy",
			BorderRadius:       "0px",
			ChartColors:        []string{"#e62b1e", "#ff6f61", "#ffa07a", "#ffffff", "#888888"},
			UseShadows:         false,
			UseGradients:       true,
			AnimationStyle:     "fade",
		}
	case model.PPTStyleAcademic:
		return model.DesignSpec{
			PrimaryColor:       "#1f3a5f",
			SecondaryColor:     "#4a6fa5",
			AccentColor:        "#b8860b",
			BackgroundColor:    "#fdfdf8",
			TextColor:          "#1a1a2e",
			TextSecondaryColor: "#55596a",
			TitleFontSize:      40,
			ContentFontSize:    22,
			FontFamily:         "Georgia, 'Times New Roman', serif",
			LayoutStyle:        "structured",
			Spacing:            "compact",
			BorderRadius:       "2px",
			ChartColors:        []string{"#1f3a5f", "#4a6fa5", "#b8860b", "#7a9e7e", "#8b5a5a"},
			UseShadows:         false,
			UseGradients:       false,
			AnimationStyle:     "none",
		}
	case model.PPTStyleCreative:
		return model.DesignSpec{
			PrimaryColor:       "#7b2cbf",
			SecondaryColor:     "#f72585",
			AccentColor:        "#4cc9f0",
			BackgroundColor:    "#fff8f0",
			TextColor:          "#240046",
			TextSecondaryColor: "#6d597a",
			TitleFontSize:      48,
			ContentFontSize:    24,
			FontFamily:         "'Comic Sans MS', 'Segoe UI', sans-serif",
			LayoutStyle:        "playful",
			Spacing:            "airy",
			BorderRadius:       "16px",
			ChartColors:        []string{"#7b2cbf", "#f72585", "#4cc9f0", "#ffbe0b", "#06d6a0"},
			UseShadows:         true,
			UseGradients:       true,
			AnimationStyle:     "bounce",
		}
	case model.PPTStyleSimple:
		return model.DesignSpec{
			PrimaryColor:       "#2d3436",
			SecondaryColor:     "#636e72",
			AccentColor:        "#0984e3",
			BackgroundColor:    "#ffffff",
			TextColor:          "#2d3436",
			TextSecondaryColor: "#636e72",
			TitleFontSize:      42,
			ContentFontSize:    22,
			FontFamily:         "'Segoe UI', Roboto, sans-serif",
			LayoutStyle:        "minimal",
			Spacing:            "normal",
			BorderRadius:       "4px",
			ChartColors:        []string{"#2d3436", "#636e72", "#0984e3", "#74b9ff", "#dfe6e9"},
			UseShadows:         false,
			UseGradients:       false,
			AnimationStyle:     "none",
		}
	default: // business
		return model.DesignSpec{
			PrimaryColor:       "#1e3a8a",
			SecondaryColor:     "#3b82f6",
			AccentColor:        "#f59e0b",
			BackgroundColor:    "#ffffff",
			TextColor:          "#111827",
			TextSecondaryColor: "#6b7280",
			TitleFontSize:      44,
			ContentFontSize:    24,
			FontFamily:         "'Segoe UI', Arial, sans-serif",
			LayoutStyle:        "corporate",
			Spacing:            "normal",
			BorderRadius:       "8px",
			ChartColors:        []string{"#1e3a8a", "#3b82f6", "#f59e0b", "#10b981", "#6b7280"},
			UseShadows:         true,
			UseGradients:       false,
			AnimationStyle:     "slide",
		}
	}
}

func designPrompt(topic string, outline []string, style model.PPTStyle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design a visual identity for a %q-style presentation about: %s\n\n", style, topic)
	b.WriteString("Slide outline:\n")
	for i, t := range outline {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	b.WriteString(`
Produce a JSON object with exactly these fields:
{
  "primaryColor": "#rrggbb", "secondaryColor": "#rrggbb", "accentColor": "#rrggbb",
  "backgroundColor": "#rrggbb", "textColor": "#rrggbb", "textSecondaryColor": "#rrggbb",
  "titleFontSize": 20-80, "contentFontSize": 14-40,
  "fontFamily": "css font stack", "layoutStyle": "tag", "spacing": "tag",
  "borderRadius": "Npx", "chartColors": [five "#rrggbb" values],
  "useShadows": bool, "useGradients": bool, "animationStyle": "tag"
}

Pick colors that evoke the topic itself, not generic corporate blue.
Style examples:
- business: deep blue primary, amber accent, white background
- ted: signature red on near-black, white text
- simple: monochrome grays with a single blue accent
- academic: navy and gold on off-white, serif fonts
- creative: saturated purple/magenta/cyan, playful radius
`)
	return b.String()
}
