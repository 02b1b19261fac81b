package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunlong/api/internal/config"
)

func TestStripJSONFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare json untouched",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "plain fence",
			input: "```\n[1, 2, 3]\n```",
			want:  `[1, 2, 3]`,
		},
		{
			name:  "chatter around the object",
			input: "Sure, here is the plan:\n{\"subtasks\": []}\nLet me know!",
			want:  `{"subtasks": []}`,
		},
		{
			name:  "array with trailing prose",
			input: `[{"x": 1}] hope that helps`,
			want:  `[{"x": 1}]`,
		},
		{
			name:  "no json at all",
			input: "I could not produce a plan.",
			want:  "I could not produce a plan.",
		},
		{
			name:  "whitespace trimmed",
			input: "  \n {\"a\": 1} \n ",
			want:  `{"a": 1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripJSONFences(tt.input))
		})
	}
}

func TestLLMClientIsConfigured(t *testing.T) {
	assert.False(t, NewLLMClient(&config.LLMConfig{}).IsConfigured())
	assert.True(t, NewLLMClient(&config.LLMConfig{APIKey: "sk-test"}).IsConfigured())
}

func TestChatCompletion(t *testing.T) {
	var gotAuth string
	var gotReq ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello back"}}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(&config.LLMConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-4o-mini"})
	content, err := c.ChatCompletion(context.Background(), "be terse", "say hello", ChatOptions{})
	require.NoError(t, err)

	assert.Equal(t, "hello back", content)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "be terse", gotReq.Messages[0].Content)
	assert.Equal(t, 0.7, gotReq.Temperature)
	assert.Equal(t, 2048, gotReq.MaxTokens)
}

func TestChatCompletionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"recovered"}}]}`))
	}))
	defer srv.Close()

	c := NewLLMClient(&config.LLMConfig{BaseURL: srv.URL, APIKey: "sk-test", MaxRetries: 3})
	content, err := c.ChatCompletion(context.Background(), "", "ping", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatCompletionDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad prompt"}`))
	}))
	defer srv.Close()

	c := NewLLMClient(&config.LLMConfig{BaseURL: srv.URL, APIKey: "sk-test", MaxRetries: 3})
	_, err := c.ChatCompletion(context.Background(), "", "ping", ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchClientIsConfigured(t *testing.T) {
	assert.False(t, NewSearchClient(&config.SearchConfig{}).IsConfigured())
	assert.True(t, NewSearchClient(&config.SearchConfig{BaseURL: "http://localhost:8888"}).IsConfigured())
}

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "solar panels", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a.example","content":"first","engine":"duckduckgo"},
			{"title":"B","url":"https://b.example","content":"second","engine":"bing"},
			{"title":"C","url":"https://c.example","content":"third","engine":"bing"}
		]}`))
	}))
	defer srv.Close()

	c := NewSearchClient(&config.SearchConfig{BaseURL: srv.URL, Region: "en-US"})
	hits, err := c.Search(context.Background(), "solar panels", 2)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, SearchHit{Title: "A", URL: "https://a.example", Snippet: "first", Source: "duckduckgo"}, hits[0])
	assert.Equal(t, "B", hits[1].Title)
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewSearchClient(&config.SearchConfig{BaseURL: srv.URL})
	_, err := c.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestMockSearchIsDeterministic(t *testing.T) {
	c := NewSearchClient(&config.SearchConfig{})

	first, err := c.Search(context.Background(), "cat nutrition", 5)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "cat nutrition", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "mock", first[0].Source)
	assert.Contains(t, first[0].Title, "cat nutrition")

	capped, err := c.Search(context.Background(), "cat nutrition", 1)
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}
