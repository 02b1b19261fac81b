package e2e

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/config"
	"github.com/xunlong/api/internal/handler"
	"github.com/xunlong/api/internal/orchestrator"
	"github.com/xunlong/api/internal/queue"
	"github.com/xunlong/api/internal/service"
	"github.com/xunlong/api/internal/store"
	"github.com/xunlong/api/internal/worker"
)

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	queue  *queue.Queue
	store  *store.Store
	worker *worker.Worker
	root   string
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients, so every collaborator call takes its mock path and the
// pipeline runs hermetically against a temp directory.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	root := t.TempDir()
	st, err := store.New(root)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	q, err := queue.New(filepath.Join(root, "tasks"))
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	validate := validator.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// External clients — all unconfigured so every call uses mock fallbacks
	llmClient := client.NewLLMClient(&config.LLMConfig{})
	searchClient := client.NewSearchClient(&config.SearchConfig{})

	taskService := service.NewTaskService(q, st, logger)
	taskHandler := handler.NewTaskHandler(taskService, validate)

	orch := orchestrator.New(st, llmClient, searchClient, 3)
	w := worker.New(q, st, orch, 0, logger)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"llm":    llmClient.IsConfigured(),
				"search": searchClient.IsConfigured(),
			},
		})
	})

	api := app.Group("/api/v1")
	tasks := api.Group("/tasks")
	tasks.Post("/report", taskHandler.CreateReport)
	tasks.Post("/fiction", taskHandler.CreateFiction)
	tasks.Post("/ppt", taskHandler.CreatePPT)
	tasks.Get("/", taskHandler.List)
	tasks.Get("/:id", taskHandler.Status)
	tasks.Get("/:id/result", taskHandler.Result)
	tasks.Get("/:id/download", taskHandler.Download)
	tasks.Delete("/:id", taskHandler.Cancel)

	return &testApp{app: app, queue: q, store: st, worker: w, root: root}
}

// drainQueue runs every pending task to a terminal status, in order.
func (ta *testApp) drainQueue(t *testing.T) {
	t.Helper()
	for {
		task, err := ta.queue.PollNext()
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
		if task == nil {
			return
		}
		ta.worker.Process(context.Background(), task)
	}
}

// projectFile returns the absolute path of a file under the task's project dir.
func (ta *testApp) projectFile(taskID string, parts ...string) string {
	return filepath.Join(append([]string{ta.root, taskID}, parts...)...)
}

// listProjectFiles returns all file paths under the task's project dir,
// relative to it.
func (ta *testApp) listProjectFiles(t *testing.T, taskID string) []string {
	t.Helper()
	var files []string
	dir := filepath.Join(ta.root, taskID)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(dir, path)
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk project dir: %v", err)
	}
	return files
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// createTask posts a task creation request and returns the new task id.
func createTask(t *testing.T, ta *testApp, endpoint, body string) string {
	t.Helper()
	resp, err := doRequest(ta.app, "POST", endpoint, body)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	id, _ := result["taskId"].(string)
	if id == "" {
		t.Fatalf("no taskId in response: %v", result)
	}
	if status, _ := result["status"].(string); status != "pending" {
		t.Errorf("expected pending status on create, got %q", status)
	}
	return id
}
