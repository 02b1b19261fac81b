package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/xunlong/api/internal/model"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Table))

// StagePath returns the fixed intermediate slot for a stage, e.g.
// intermediate/01_task_decomposition.json.
func (p *Project) StagePath(stage model.Stage) string {
	return filepath.Join(p.Dir, "intermediate", fmt.Sprintf("%02d_%s.json", int(stage), stage.Name()))
}

// SaveStage atomically writes the stage payload to its fixed slot.
func (p *Project) SaveStage(stage model.Stage, payload any) error {
	return writeJSON(p.StagePath(stage), payload)
}

// SaveSearchDump writes the human-readable search result dump.
func (p *Project) SaveSearchDump(items []model.ContentItem) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for project %s\n", p.ID)
	fmt.Fprintf(&b, "Total: %d\n\n", len(items))
	for i, item := range items {
		fmt.Fprintf(&b, "--- [%d] %s\n", i+1, item.Title)
		fmt.Fprintf(&b, "URL:     %s\n", item.URL)
		fmt.Fprintf(&b, "Query:   %s\n", item.SearchQuery)
		fmt.Fprintf(&b, "Subtask: %s\n", item.SubtaskTitle)
		snippet := item.Content
		if cut := model.TruncateRunes(snippet, 500); len(cut) < len(snippet) {
			snippet = cut + "..."
		}
		fmt.Fprintf(&b, "%s\n\n", snippet)
	}
	path := filepath.Join(p.Dir, "search_results", "search_results.txt")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// SaveFinal writes the stage 6 artifact and the format-specific companion
// files under reports/. It fills in ResultPath/HTMLReportPath on the report
// before persisting it.
func (p *Project) SaveFinal(final *model.FinalReport, query string) error {
	reports := filepath.Join(p.Dir, "reports")

	switch final.OutputType {
	case model.TaskTypePPT:
		if err := p.saveFinalPPT(final, reports); err != nil {
			return err
		}
	default:
		if err := p.saveFinalDocument(final, query, reports); err != nil {
			return err
		}
	}

	return p.SaveStage(model.StageFinalize, final)
}

func (p *Project) saveFinalDocument(final *model.FinalReport, query, reports string) error {
	md := formatFinalMarkdown(final, query, p.ID)
	mdPath := filepath.Join(reports, "FINAL_REPORT.md")
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write FINAL_REPORT.md: %w", err)
	}
	final.ResultPath = mdPath

	summary := buildSummary(final)
	if err := os.WriteFile(filepath.Join(reports, "SUMMARY.md"), []byte(summary), 0o644); err != nil {
		return fmt.Errorf("failed to write SUMMARY.md: %w", err)
	}

	// HTML companion: either the synthesizer supplied html_content, or the
	// requested output format asks for an HTML render of the markdown.
	html := final.HTMLContent
	if html == "" && final.OutputFormat == model.OutputFormatHTML {
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(md), &buf); err == nil {
			html = wrapHTMLPage(final.Title, buf.String())
		}
	}
	if html != "" {
		htmlPath := filepath.Join(reports, "FINAL_REPORT.html")
		if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
			return fmt.Errorf("failed to write FINAL_REPORT.html: %w", err)
		}
		final.HTMLReportPath = htmlPath
	}
	return nil
}

func (p *Project) saveFinalPPT(final *model.FinalReport, reports string) error {
	doc := final.PPT
	if doc == nil {
		return fmt.Errorf("ppt final payload has no deck")
	}

	if doc.HTMLContent != "" {
		htmlPath := filepath.Join(reports, "FINAL_REPORT.html")
		if err := os.WriteFile(htmlPath, []byte(doc.HTMLContent), 0o644); err != nil {
			return fmt.Errorf("failed to write FINAL_REPORT.html: %w", err)
		}
		final.HTMLReportPath = htmlPath
	}

	dataPath := filepath.Join(reports, "PPT_DATA.json")
	if err := writeJSON(dataPath, doc); err != nil {
		return fmt.Errorf("failed to write PPT_DATA.json: %w", err)
	}
	final.ResultPath = dataPath

	if len(doc.SpeechNotes) > 0 {
		notes := make(map[string]string, len(doc.Slides))
		var txt strings.Builder
		for i, slide := range doc.Slides {
			if i < len(doc.SpeechNotes) && doc.SpeechNotes[i] != "" {
				notes[fmt.Sprintf("slide_%d", slide.SlideNumber)] = doc.SpeechNotes[i]
				fmt.Fprintf(&txt, "=== Slide %d: %s ===\n%s\n\n", slide.SlideNumber, slide.Topic, doc.SpeechNotes[i])
			}
		}
		if err := writeJSON(filepath.Join(reports, "SPEECH_NOTES.json"), notes); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(reports, "SPEECH_NOTES.txt"), []byte(txt.String()), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// formatFinalMarkdown opens with an H1 title, a metadata block, the
// synthesized body and a metrics footer.
func formatFinalMarkdown(final *model.FinalReport, query, id string) string {
	title := final.Title
	if title == "" {
		title = query
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "> Query: %s\n", query)
	fmt.Fprintf(&b, "> Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "> Task: %s\n\n", id)
	b.WriteString(final.Content)
	if !strings.HasSuffix(final.Content, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n---\n\n")
	fmt.Fprintf(&b, "*%d words · %d sources · generated in %.1fs*\n",
		final.Metadata.WordCount, final.Metadata.ContentSources, final.Metadata.GenerationTime)
	return b.String()
}

// buildSummary keeps the top two sections when the synthesis is sectioned,
// otherwise the first 1000 characters of the body.
func buildSummary(final *model.FinalReport) string {
	if len(final.Sections) >= 2 {
		var b strings.Builder
		for _, sec := range final.Sections[:2] {
			fmt.Fprintf(&b, "## %s\n\n%s\n\n", sec.Title, sec.Content)
		}
		return b.String()
	}
	return model.TruncateRunes(final.Content, 1000)
}

func wrapHTMLPage(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>body{max-width:860px;margin:2rem auto;padding:0 1rem;font-family:system-ui,sans-serif;line-height:1.6}</style>
</head>
<body>
%s
</body>
</html>
`, title, body)
}
