package ppt

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/model"
)

// Layout families. Every family is a deterministic template filled from
// LLM-produced content fields, which keeps the fragment composable even when
// the model is chatty.
const (
	layoutTitleCenter    = "title-center"
	layoutCenterText     = "center-text"
	layoutLeftRightSplit = "left-right-split"
	layoutGridCards      = "grid-cards"
	layoutBigNumbers     = "big-numbers"
	layoutTopBottom      = "top-bottom"
	layoutBullets        = "bullets"
	layoutCustom         = "custom"
)

// pageContent is what the LLM is asked to produce for one slide: text
// fields only, never markup.
type pageContent struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Points   []string `json:"points,omitempty"`
	Emphasis string   `json:"emphasis,omitempty"`
}

// PageAgent produces the HTML fragment (and optionally speech notes) for
// one slide. The fragment is a single container div sized to fill a
// 100vw x 100vh page with a 10/75/15 vertical budget (title / content /
// footer); it never contains <html> or <body>.
type PageAgent struct {
	llm    *client.LLMClient
	logger *slog.Logger
}

// NewPageAgent creates a page agent.
func NewPageAgent(llm *client.LLMClient, logger *slog.Logger) *PageAgent {
	return &PageAgent{llm: llm, logger: logger}
}

// GeneratePage renders one slide to its HTML fragment.
func (a *PageAgent) GeneratePage(ctx context.Context, spec model.PageSpec, g model.GlobalContext, contentData string) (string, error) {
	content := a.generateContent(ctx, spec, g, contentData)
	layout := chooseLayout(spec, g.Design.LayoutStyle)

	frag := renderFragment(layout, content, spec, g)
	if spec.HasChart {
		frag = injectChart(frag, spec.SlideNumber, g.Design)
	}
	return frag, nil
}

// generateContent asks the LLM for the slide's text fields, falling back to
// the page spec itself when the model is unavailable or unparseable.
func (a *PageAgent) generateContent(ctx context.Context, spec model.PageSpec, g model.GlobalContext, contentData string) pageContent {
	fallback := pageContent{
		Title:    spec.Topic,
		Subtitle: g.Title,
		Points:   spec.KeyPoints,
	}
	if !a.llm.IsConfigured() {
		return fallback
	}

	system := "You write concise presentation slide copy. Reply with a single JSON object only."
	user := pagePrompt(spec, g, contentData)
	raw, err := a.llm.ChatCompletion(ctx, system, user, client.ChatOptions{Temperature: 0.7, MaxTokens: 800})
	if err != nil {
		a.logger.Warn("page content LLM call failed", "slide", spec.SlideNumber, "error", err)
		return fallback
	}

	var content pageContent
	if err := json.Unmarshal([]byte(client.StripJSONFences(raw)), &content); err != nil || content.Title == "" {
		a.logger.Warn("page content did not parse", "slide", spec.SlideNumber)
		return fallback
	}
	if len(content.Points) == 0 {
		content.Points = spec.KeyPoints
	}
	return content
}

// chooseLayout picks a layout family from the page type, the visual style
// hint and the shape of the content.
func chooseLayout(spec model.PageSpec, styleHint string) string {
	switch spec.PageType {
	case model.PageTypeTitle:
		return layoutTitleCenter
	case model.PageTypeSection, model.PageTypeConclusion:
		return layoutCenterText
	}
	if spec.HasChart {
		return layoutTopBottom
	}
	if allNumericLead(spec.KeyPoints) && len(spec.KeyPoints) >= 2 {
		return layoutBigNumbers
	}
	switch {
	case len(spec.KeyPoints) >= 5:
		return layoutBullets
	case len(spec.KeyPoints) >= 3:
		return layoutGridCards
	case len(spec.KeyPoints) > 0:
		return layoutLeftRightSplit
	}
	if styleHint == "" {
		return layoutCustom
	}
	return layoutBullets
}

func allNumericLead(points []string) bool {
	if len(points) == 0 {
		return false
	}
	for _, p := range points {
		r := []rune(strings.TrimSpace(p))
		if len(r) == 0 || !unicode.IsDigit(r[0]) {
			return false
		}
	}
	return true
}

// renderFragment fills the deterministic template for the chosen family.
// All LLM-sourced text is escaped, so the fragment schema stays shallow
// (div/h1-h3/p/li plus optional canvas+script).
func renderFragment(layout string, content pageContent, spec model.PageSpec, g model.GlobalContext) string {
	d := g.Design
	title := html.EscapeString(content.Title)
	subtitle := html.EscapeString(content.Subtitle)
	emphasis := html.EscapeString(content.Emphasis)

	base := fmt.Sprintf(
		`style="width:100vw;height:100vh;box-sizing:border-box;overflow:hidden;display:flex;flex-direction:column;background:%s;color:%s;font-family:%s;padding:4vh 5vw"`,
		d.BackgroundColor, d.TextColor, d.FontFamily)

	var body strings.Builder
	footer := fmt.Sprintf(
		`<div style="height:15%%;display:flex;align-items:flex-end;justify-content:space-between;color:%s;font-size:14px"><p>%s</p><p>%d / %d</p></div>`,
		d.TextSecondaryColor, html.EscapeString(g.Title), spec.SlideNumber, g.TotalSlides)

	switch layout {
	case layoutTitleCenter:
		return fmt.Sprintf(`<div class="slide slide-%d" %s>
<div style="flex:1;display:flex;flex-direction:column;align-items:center;justify-content:center;text-align:center">
<h1 style="font-size:%dpx;color:%s;margin:0 0 2vh 0">%s</h1>
<p style="font-size:%dpx;color:%s">%s</p>
</div>
%s
</div>`, spec.SlideNumber, base, d.TitleFontSize, d.PrimaryColor, title,
			d.ContentFontSize, d.TextSecondaryColor, subtitle, footer)

	case layoutCenterText:
		text := emphasis
		if text == "" && len(content.Points) > 0 {
			text = html.EscapeString(content.Points[0])
		}
		body.WriteString(fmt.Sprintf(`<div style="flex:1;display:flex;flex-direction:column;align-items:center;justify-content:center;text-align:center">
<h2 style="font-size:%dpx;color:%s;margin:0 0 3vh 0">%s</h2>
<p style="font-size:%dpx;max-width:70vw">%s</p>
</div>`, d.TitleFontSize, d.PrimaryColor, title, d.ContentFontSize, text))

	case layoutLeftRightSplit:
		var right strings.Builder
		for _, pt := range content.Points {
			right.WriteString(fmt.Sprintf(`<p style="font-size:%dpx;margin:1vh 0">%s</p>`, d.ContentFontSize, html.EscapeString(pt)))
		}
		body.WriteString(fmt.Sprintf(`<div style="flex:1;display:flex;gap:4vw;align-items:center">
<div style="flex:1"><h2 style="font-size:%dpx;color:%s">%s</h2><p style="color:%s;font-size:%dpx">%s</p></div>
<div style="flex:1;border-left:4px solid %s;padding-left:3vw">%s</div>
</div>`, d.TitleFontSize, d.PrimaryColor, title, d.TextSecondaryColor, d.ContentFontSize, subtitle,
			d.AccentColor, right.String()))

	case layoutGridCards:
		var cards strings.Builder
		for _, pt := range content.Points {
			shadow := ""
			if d.UseShadows {
				shadow = "box-shadow:0 4px 12px rgba(0,0,0,.12);"
			}
			cards.WriteString(fmt.Sprintf(`<div style="background:%s0d;border:1px solid %s;border-radius:%s;%spadding:2vh 1.5vw"><p style="font-size:%dpx;margin:0">%s</p></div>`,
				d.PrimaryColor, d.SecondaryColor, d.BorderRadius, shadow, d.ContentFontSize, html.EscapeString(pt)))
		}
		body.WriteString(fmt.Sprintf(`%s<div style="flex:1;display:grid;grid-template-columns:1fr 1fr;gap:2vh 2vw;align-content:center">%s</div>`,
			headerBlock(title, d), cards.String()))

	case layoutBigNumbers:
		var nums strings.Builder
		for _, pt := range content.Points {
			lead, rest := splitNumericLead(pt)
			nums.WriteString(fmt.Sprintf(`<div style="text-align:center"><h3 style="font-size:%dpx;color:%s;margin:0">%s</h3><p style="font-size:%dpx;color:%s">%s</p></div>`,
				d.TitleFontSize+16, d.AccentColor, html.EscapeString(lead), d.ContentFontSize, d.TextSecondaryColor, html.EscapeString(rest)))
		}
		body.WriteString(fmt.Sprintf(`%s<div style="flex:1;display:flex;align-items:center;justify-content:space-evenly">%s</div>`,
			headerBlock(title, d), nums.String()))

	case layoutTopBottom:
		var top strings.Builder
		for _, pt := range content.Points {
			top.WriteString(fmt.Sprintf(`<li style="font-size:%dpx;margin:.5vh 0">%s</li>`, d.ContentFontSize, html.EscapeString(pt)))
		}
		body.WriteString(fmt.Sprintf(`%s<div style="flex:1;display:flex;flex-direction:column"><ul style="margin:0 0 2vh 0;padding-left:2vw">%s</ul><div class="chart-slot" style="flex:1;min-height:0"></div></div>`,
			headerBlock(title, d), top.String()))

	default: // bullets and custom
		var items strings.Builder
		for _, pt := range content.Points {
			items.WriteString(fmt.Sprintf(`<li style="font-size:%dpx;margin:1vh 0">%s</li>`, d.ContentFontSize, html.EscapeString(pt)))
		}
		extra := ""
		if emphasis != "" {
			extra = fmt.Sprintf(`<p style="font-size:%dpx;color:%s;margin-top:2vh">%s</p>`, d.ContentFontSize, d.AccentColor, emphasis)
		}
		body.WriteString(fmt.Sprintf(`%s<div style="flex:1;display:flex;flex-direction:column;justify-content:center"><ul style="padding-left:2vw">%s</ul>%s</div>`,
			headerBlock(title, d), items.String(), extra))
	}

	return fmt.Sprintf(`<div class="slide slide-%d" %s>
%s
%s
</div>`, spec.SlideNumber, base, body.String(), footer)
}

// headerBlock is the 10%% title band shared by the content layouts.
func headerBlock(title string, d model.DesignSpec) string {
	return fmt.Sprintf(`<div style="height:10%%"><h2 style="font-size:%dpx;color:%s;margin:0;border-bottom:3px solid %s;padding-bottom:1vh;display:inline-block">%s</h2></div>`,
		d.TitleFontSize-6, d.PrimaryColor, d.AccentColor, title)
}

func splitNumericLead(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || s[i] == '%' || s[i] == '+' || s[i] == 'x') {
		i++
	}
	if i == 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// injectChart embeds a canvas with a unique id and its matching inline
// initialization script into the fragment's chart slot (or before the
// closing container tag when no slot exists).
func injectChart(frag string, slideNumber int, d model.DesignSpec) string {
	chartID := fmt.Sprintf("chart_%d_%s", slideNumber, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	colors, _ := json.Marshal(d.ChartColors)
	chart := fmt.Sprintf(`<canvas id="%s" style="max-width:100%%;max-height:100%%"></canvas>
<script>
(function(){
  var c = document.getElementById(%q);
  if (!c || !c.getContext) return;
  var ctx = c.getContext("2d");
  var colors = %s;
  var w = c.width = c.clientWidth || 600, h = c.height = c.clientHeight || 300;
  for (var i = 0; i < colors.length; i++) {
    var bh = h * (0.3 + 0.6 * ((i * 37) %% 10) / 10);
    ctx.fillStyle = colors[i];
    ctx.fillRect(i * (w / colors.length) + 10, h - bh, w / colors.length - 20, bh);
  }
})();
</script>`, chartID, chartID, colors)

	if strings.Contains(frag, `class="chart-slot"`) {
		return strings.Replace(frag, `style="flex:1;min-height:0"></div>`, `style="flex:1;min-height:0">`+chart+`</div>`, 1)
	}
	if idx := strings.LastIndex(frag, "</div>"); idx >= 0 {
		return frag[:idx] + chart + frag[idx:]
	}
	return frag + chart
}

func pagePrompt(spec model.PageSpec, g model.GlobalContext, contentData string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Presentation: %s (style: %s)\n", g.Title, g.Style)
	fmt.Fprintf(&b, "Slide %d of %d — type %s — topic: %s\n", spec.SlideNumber, g.TotalSlides, spec.PageType, spec.Topic)
	if len(spec.KeyPoints) > 0 {
		b.WriteString("Key points to cover:\n")
		for _, p := range spec.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if contentData != "" {
		excerpt := model.TruncateRunes(contentData, 1500)
		fmt.Fprintf(&b, "\nResearch excerpts:\n%s\n", excerpt)
	}
	b.WriteString(`
Write the slide copy as JSON:
{"title": "short slide title", "subtitle": "one supporting line", "points": ["3-6 tight bullet points"], "emphasis": "optional single takeaway"}
Text only — no HTML, no markdown.`)
	return b.String()
}
