package e2e

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/health", "")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "ok" {
		t.Errorf("expected ok, got %v", result["status"])
	}
	services, ok := result["services"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing services block: %v", result)
	}
	// Test clients are unconfigured
	if services["llm"] != false || services["search"] != false {
		t.Errorf("expected unconfigured collaborators, got %v", services)
	}
}

func TestCreateValidation(t *testing.T) {
	ta := setupApp(t)

	cases := []struct {
		name     string
		endpoint string
		body     string
	}{
		{"empty body", "/api/v1/tasks/report", `{}`},
		{"query too short", "/api/v1/tasks/report", `{"query":"x"}`},
		{"bad output format", "/api/v1/tasks/report", `{"query":"valid query","outputFormat":"xlsx"}`},
		{"bad fiction length", "/api/v1/tasks/fiction", `{"query":"valid query","length":"epic"}`},
		{"slide count too low", "/api/v1/tasks/ppt", `{"query":"valid query","slideCount":2}`},
		{"slide count too high", "/api/v1/tasks/ppt", `{"query":"valid query","slideCount":51}`},
		{"bad style", "/api/v1/tasks/ppt", `{"query":"valid query","style":"vaporwave"}`},
		{"not json", "/api/v1/tasks/report", `not json at all`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := doRequest(ta.app, "POST", tc.endpoint, tc.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)
			result := parseJSON(t, resp)
			errObj, ok := result["error"].(map[string]interface{})
			if !ok {
				t.Fatalf("missing error envelope: %v", result)
			}
			if errObj["code"] != "VALIDATION_ERROR" {
				t.Errorf("expected VALIDATION_ERROR, got %v", errObj["code"])
			}
		})
	}
}

func TestStatusUnknownTask(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/api/v1/tasks/20240101_000000_missing", "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
	result := parseJSON(t, resp)
	errObj, _ := result["error"].(map[string]interface{})
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", errObj)
	}
}

func TestListTasksWithFilters(t *testing.T) {
	ta := setupApp(t)

	for i := 0; i < 3; i++ {
		createTask(t, ta, "/api/v1/tasks/report", fmt.Sprintf(`{"query":"report number %d"}`, i))
	}
	ppt := createTask(t, ta, "/api/v1/tasks/ppt", `{"query":"one deck"}`)

	resp, err := doRequest(ta.app, "GET", "/api/v1/tasks/", "")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if total, _ := result["total"].(float64); total != 4 {
		t.Errorf("expected 4 tasks, got %v", total)
	}

	// Newest first
	tasks, _ := result["tasks"].([]interface{})
	if len(tasks) > 0 {
		first, _ := tasks[0].(map[string]interface{})
		if first["taskId"] != ppt {
			t.Errorf("expected newest task first, got %v", first["taskId"])
		}
	}

	// Type filter
	resp, err = doRequest(ta.app, "GET", "/api/v1/tasks/?task_type=ppt", "")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	result = parseJSON(t, resp)
	if total, _ := result["total"].(float64); total != 1 {
		t.Errorf("expected 1 ppt task, got %v", total)
	}

	// Limit
	resp, err = doRequest(ta.app, "GET", "/api/v1/tasks/?limit=2", "")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	result = parseJSON(t, resp)
	if total, _ := result["total"].(float64); total != 2 {
		t.Errorf("expected 2 tasks with limit, got %v", total)
	}

	// Status filter after completion
	ta.drainQueue(t)
	resp, err = doRequest(ta.app, "GET", "/api/v1/tasks/?status=completed", "")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	result = parseJSON(t, resp)
	if total, _ := result["total"].(float64); total != 4 {
		t.Errorf("expected 4 completed tasks, got %v", total)
	}
}
