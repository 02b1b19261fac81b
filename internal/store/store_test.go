package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunlong/api/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateProjectTree(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_test_project", "test project")
	require.NoError(t, err)
	assert.Equal(t, "20240315_093045_test_project", p.ID)

	for _, sub := range []string{"intermediate", "reports", "search_results", "exports"} {
		info, err := os.Stat(filepath.Join(p.Dir, sub))
		require.NoError(t, err, "missing %s", sub)
		assert.True(t, info.IsDir())
	}

	meta, err := readMetadata(p.Dir)
	require.NoError(t, err)
	assert.Equal(t, "test project", meta.Query)
	assert.Equal(t, model.TaskStatusRunning, meta.Status)
}

func TestCreateProjectIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateProjectID("20240315_093045_twice", "twice")
	require.NoError(t, err)
	_, err = s.CreateProjectID("20240315_093045_twice", "twice")
	require.NoError(t, err)
}

func TestOpenProject(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateProjectID("20240315_093045_reopen", "reopen me")
	require.NoError(t, err)

	opened, err := s.OpenProject(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Dir, opened.Dir)
	assert.Equal(t, "reopen me", opened.Query)

	_, err = s.OpenProject("20240101_000000_missing")
	assert.Error(t, err)
}

func TestListProjectsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateProjectID("20240315_093045_first", "first")
	require.NoError(t, err)
	// CreatedAt ordering needs distinct timestamps
	time.Sleep(10 * time.Millisecond)
	second, err := s.CreateProjectID("20240315_093046_second", "second")
	require.NoError(t, err)

	metas, err := s.ListProjects()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, second.ID, metas[0].ID)
	assert.Equal(t, first.ID, metas[1].ID)
}

func TestFindProjectByPartialID(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateProjectID("20240315_093045_findable", "findable")
	require.NoError(t, err)

	found, err := s.FindProject("findable")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = s.FindProject("nonexistent")
	assert.Error(t, err)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_status", "status")
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(p.ID, model.TaskStatusCompleted))
	meta, err := readMetadata(p.Dir)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, meta.Status)
	assert.True(t, meta.UpdatedAt.After(meta.CreatedAt) || meta.UpdatedAt.Equal(meta.CreatedAt))
}

func TestSaveStageWritesFixedSlot(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_stages", "stages")
	require.NoError(t, err)

	plan := &model.TaskPlan{Subtasks: []model.Subtask{{ID: "t1", Title: "Overview"}}}
	require.NoError(t, p.SaveStage(model.StageDecompose, plan))

	path := p.StagePath(model.StageDecompose)
	assert.Equal(t, filepath.Join(p.Dir, "intermediate", "01_task_decomposition.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Overview"`)
}

func TestSaveFinalDocument(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_final_doc", "final doc")
	require.NoError(t, err)

	final := &model.FinalReport{
		Synthesis: model.Synthesis{
			OutputType: model.TaskTypeReport,
			Title:      "Final Doc",
			Content:    "## Intro\n\nBody text.\n\n## Detail\n\nMore text.\n",
			Sections: []model.Section{
				{Title: "Intro", Content: "Body text."},
				{Title: "Detail", Content: "More text."},
				{Title: "Extra", Content: "Unused in summary."},
			},
			Metadata: model.SynthesisMetadata{WordCount: 8, ContentSources: 3},
		},
		OutputFormat: model.OutputFormatMD,
	}
	require.NoError(t, p.SaveFinal(final, "final doc"))

	md, err := os.ReadFile(filepath.Join(p.Dir, "reports", "FINAL_REPORT.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Final Doc")
	assert.Contains(t, string(md), "> Query: final doc")
	assert.Contains(t, string(md), "8 words")

	// Summary keeps the top two sections
	summary, err := os.ReadFile(filepath.Join(p.Dir, "reports", "SUMMARY.md"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "## Intro")
	assert.Contains(t, string(summary), "## Detail")
	assert.NotContains(t, string(summary), "## Extra")

	assert.Equal(t, filepath.Join(p.Dir, "reports", "FINAL_REPORT.md"), final.ResultPath)

	// md output format produces no HTML companion
	_, err = os.Stat(filepath.Join(p.Dir, "reports", "FINAL_REPORT.html"))
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, final.HTMLReportPath)

	// The finalize artifact is persisted too
	_, err = os.Stat(p.StagePath(model.StageFinalize))
	assert.NoError(t, err)
}

func TestSaveFinalHTMLFormatRendersMarkdown(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_final_html", "final html")
	require.NoError(t, err)

	final := &model.FinalReport{
		Synthesis: model.Synthesis{
			OutputType: model.TaskTypeReport,
			Title:      "HTML Report",
			Content:    "## Heading\n\nSome **bold** text.\n",
		},
		OutputFormat: model.OutputFormatHTML,
	}
	require.NoError(t, p.SaveFinal(final, "final html"))

	html, err := os.ReadFile(filepath.Join(p.Dir, "reports", "FINAL_REPORT.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<strong>bold</strong>")
	assert.Contains(t, string(html), "<title>HTML Report</title>")
	assert.Equal(t, filepath.Join(p.Dir, "reports", "FINAL_REPORT.html"), final.HTMLReportPath)
}

func TestSaveFinalSummaryFallsBackToBody(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_short_summary", "short summary")
	require.NoError(t, err)

	final := &model.FinalReport{
		Synthesis: model.Synthesis{
			OutputType: model.TaskTypeReport,
			Title:      "One Section",
			Content:    "Just a short body with no sections.",
			Sections:   []model.Section{{Title: "Only", Content: "Just a short body with no sections."}},
		},
		OutputFormat: model.OutputFormatMD,
	}
	require.NoError(t, p.SaveFinal(final, "short summary"))

	summary, err := os.ReadFile(filepath.Join(p.Dir, "reports", "SUMMARY.md"))
	require.NoError(t, err)
	assert.Equal(t, "Just a short body with no sections.", string(summary))
}

func TestSaveFinalSummaryTruncatesOnRuneBoundary(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_cjk_summary", "cjk summary")
	require.NoError(t, err)

	// 999 single-byte runes followed by multi-byte ones puts the 1000-rune
	// cut in the middle of the CJK run.
	final := &model.FinalReport{
		Synthesis: model.Synthesis{
			OutputType: model.TaskTypeReport,
			Title:      "Long Body",
			Content:    strings.Repeat("a", 999) + "世界は広い",
		},
		OutputFormat: model.OutputFormatMD,
	}
	require.NoError(t, p.SaveFinal(final, "cjk summary"))

	summary, err := os.ReadFile(filepath.Join(p.Dir, "reports", "SUMMARY.md"))
	require.NoError(t, err)
	assert.True(t, utf8.Valid(summary))
	assert.Equal(t, 1000, utf8.RuneCount(summary))
	assert.True(t, strings.HasSuffix(string(summary), "世"))
}

func TestSaveSearchDumpTruncatesSnippetOnRuneBoundary(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_cjk_dump", "cjk dump")
	require.NoError(t, err)

	items := []model.ContentItem{
		{Title: "CJK Hit", URL: "https://example.com/cjk", Content: strings.Repeat("界", 600), SearchQuery: "q"},
	}
	require.NoError(t, p.SaveSearchDump(items))

	data, err := os.ReadFile(filepath.Join(p.Dir, "search_results", "search_results.txt"))
	require.NoError(t, err)
	assert.True(t, utf8.Valid(data))
	assert.Contains(t, string(data), strings.Repeat("界", 500)+"...")
	assert.NotContains(t, string(data), strings.Repeat("界", 501))
}

func TestSaveFinalPPT(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_final_ppt", "final ppt")
	require.NoError(t, err)

	final := &model.FinalReport{
		Synthesis: model.Synthesis{
			OutputType: model.TaskTypePPT,
			Title:      "Deck",
			PPT: &model.PPTDocument{
				Title: "Deck",
				Slides: []model.Slide{
					{SlideNumber: 1, PageType: model.PageTypeTitle, Topic: "Deck"},
					{SlideNumber: 2, PageType: model.PageTypeContent, Topic: "Point"},
				},
				HTMLContent: "<!DOCTYPE html><html><body>deck</body></html>",
				SpeechNotes: []string{"Welcome everyone.", "Main point here."},
				Metadata:    model.PPTMetadata{SlideCount: 2, Style: model.PPTStyleBusiness},
			},
		},
		OutputFormat: model.OutputFormatHTML,
	}
	require.NoError(t, p.SaveFinal(final, "final ppt"))

	reports := filepath.Join(p.Dir, "reports")
	for _, name := range []string{"PPT_DATA.json", "FINAL_REPORT.html", "SPEECH_NOTES.json", "SPEECH_NOTES.txt"} {
		_, err := os.Stat(filepath.Join(reports, name))
		assert.NoError(t, err, "missing %s", name)
	}
	assert.Equal(t, filepath.Join(reports, "PPT_DATA.json"), final.ResultPath)
	assert.Equal(t, filepath.Join(reports, "FINAL_REPORT.html"), final.HTMLReportPath)

	notes, err := os.ReadFile(filepath.Join(reports, "SPEECH_NOTES.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(notes), "=== Slide 1: Deck ===")
	assert.Contains(t, string(notes), "Welcome everyone.")

	data, err := os.ReadFile(filepath.Join(reports, "PPT_DATA.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"slideCount": 2`)
}

func TestSaveSearchDump(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProjectID("20240315_093045_dump", "dump")
	require.NoError(t, err)

	items := []model.ContentItem{
		{Title: "Hit One", URL: "https://example.com/1", Content: "snippet one", SearchQuery: "q1", SubtaskTitle: "Overview"},
		{Title: "Hit Two", URL: "https://example.com/2", Content: "snippet two", SearchQuery: "q2", SubtaskTitle: "Detail"},
	}
	require.NoError(t, p.SaveSearchDump(items))

	data, err := os.ReadFile(filepath.Join(p.Dir, "search_results", "search_results.txt"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Total: 2")
	assert.Contains(t, text, "--- [1] Hit One")
	assert.Contains(t, text, "URL:     https://example.com/2")
	assert.Contains(t, text, "Subtask: Overview")
}
