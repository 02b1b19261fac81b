package e2e

import (
	"net/http"
	"os"
	"regexp"
	"strings"
	"testing"
)

var taskIDPattern = regexp.MustCompile(`^\d{8}_\d{6}_[a-z0-9_]{0,30}$`)

func TestReportLifecycle(t *testing.T) {
	ta := setupApp(t)

	id := createTask(t, ta, "/api/v1/tasks/report", `{"query":"Apple Vision Pro review"}`)

	if !taskIDPattern.MatchString(id) {
		t.Errorf("task id %q does not match expected format", id)
	}

	// Record is pending before the worker touches it
	resp, err := doRequest(ta.app, "GET", "/api/v1/tasks/"+id, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	status := parseJSON(t, resp)
	if status["status"] != "pending" {
		t.Errorf("expected pending before worker ran, got %v", status["status"])
	}

	ta.drainQueue(t)

	// Completed with full progress
	resp, err = doRequest(ta.app, "GET", "/api/v1/tasks/"+id, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	status = parseJSON(t, resp)
	if status["status"] != "completed" {
		t.Fatalf("expected completed, got %v (error: %v)", status["status"], status["error"])
	}
	if progress, _ := status["progress"].(float64); progress != 100 {
		t.Errorf("expected progress 100, got %v", progress)
	}
	if status["resultPath"] == "" {
		t.Error("expected resultPath on completed task")
	}

	// Every stage artifact is on disk
	wantStages := []string{
		"intermediate/01_task_decomposition.json",
		"intermediate/02_search_results.json",
		"intermediate/03_content_evaluation.json",
		"intermediate/04_search_analysis.json",
		"intermediate/05_content_synthesis.json",
		"intermediate/06_final_report.json",
	}
	files := ta.listProjectFiles(t, id)
	for _, want := range wantStages {
		if !containsFile(files, want) {
			t.Errorf("missing stage artifact %s (have %v)", want, files)
		}
	}
	for _, want := range []string{
		"reports/FINAL_REPORT.md",
		"reports/SUMMARY.md",
		"search_results/search_results.txt",
		"execution_log.txt",
		"metadata.json",
	} {
		if !containsFile(files, want) {
			t.Errorf("missing companion file %s", want)
		}
	}

	// Final markdown opens with the H1 title and metadata block
	md, err := os.ReadFile(ta.projectFile(id, "reports", "FINAL_REPORT.md"))
	if err != nil {
		t.Fatalf("failed to read final report: %v", err)
	}
	if !strings.HasPrefix(string(md), "# ") {
		t.Error("final report should open with an H1 title")
	}
	if !strings.Contains(string(md), "> Query: Apple Vision Pro review") {
		t.Error("final report should carry the query metadata line")
	}

	// Result endpoint returns the compact payload
	resp, err = doRequest(ta.app, "GET", "/api/v1/tasks/"+id+"/result", "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["resultPath"] == "" {
		t.Error("result payload missing resultPath")
	}

	// Markdown download streams the report
	resp, err = doRequest(ta.app, "GET", "/api/v1/tasks/"+id+"/download?file_type=md", "")
	if err != nil {
		t.Fatalf("download request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if body := readBody(t, resp); !strings.HasPrefix(body, "# ") {
		t.Error("downloaded markdown should open with an H1 title")
	}
}

func TestReportResultBeforeCompletion(t *testing.T) {
	ta := setupApp(t)

	id := createTask(t, ta, "/api/v1/tasks/report", `{"query":"quantum computing"}`)

	resp, err := doRequest(ta.app, "GET", "/api/v1/tasks/"+id+"/result", "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)

	resp, err = doRequest(ta.app, "GET", "/api/v1/tasks/"+id+"/download", "")
	if err != nil {
		t.Fatalf("download request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestTasksRunInEnqueueOrder(t *testing.T) {
	ta := setupApp(t)

	first := createTask(t, ta, "/api/v1/tasks/report", `{"query":"first topic"}`)
	second := createTask(t, ta, "/api/v1/tasks/fiction", `{"query":"second topic"}`)

	task, err := ta.queue.PollNext()
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if task == nil || task.ID != first {
		t.Fatalf("expected first enqueued task %s, got %+v", first, task)
	}

	next, err := ta.queue.PollNext()
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if next == nil || next.ID != second {
		t.Fatalf("expected second enqueued task %s, got %+v", second, next)
	}
}

func containsFile(files []string, want string) bool {
	for _, f := range files {
		if f == want {
			return true
		}
	}
	return false
}
