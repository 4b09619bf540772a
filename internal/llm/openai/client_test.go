package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	t.Setenv("TEST_LLM_KEY", "secret")
	c, err := NewClient(Config{BaseURL: url, APIKeyEnv: "TEST_LLM_KEY", Model: "test-model", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestCompleteSendsMessages(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"<think>hm</think>Yes."}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL+"/").Complete(context.Background(), "be brief", "is 1984 available?")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "<think>hm</think>Yes." {
		t.Errorf("out = %q", out)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 {
		t.Fatalf("request = %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Content != "is 1984 available?" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestCompleteReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit reached","type":"tokens"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Complete(context.Background(), "", "q")
	if err == nil || !strings.Contains(err.Error(), "rate limit reached") {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).Complete(context.Background(), "", "q"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompleteHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := newTestClient(t, srv.URL).Complete(ctx, "", "q"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "")
	if _, err := NewClient(Config{APIKeyEnv: "TEST_LLM_KEY", Model: "m"}); err == nil {
		t.Fatal("expected missing key error")
	}
}
