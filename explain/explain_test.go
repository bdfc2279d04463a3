package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/guregu/null"

	"github.com/pgsleuth/pgsleuth/state"
	"github.com/pgsleuth/pgsleuth/util"
)

func chatCompletionStub(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": content},
				},
			},
		})
	}))
}

func sampleInfo() *state.DeadlockInfo {
	return &state.DeadlockInfo{
		AnalysisID: "test",
		Transactions: map[int32]*state.Transaction{
			123: {Pid: 123, Statement: null.StringFrom("UPDATE accounts SET balance = ? WHERE id = ?")},
		},
		Cycles: []state.DeadlockCycle{
			{Pids: []int32{123, 789}, Relations: []string{"accounts", "orders"}, Severity: 56},
		},
		RecommendedFix: "Root cause: lock ordering.",
		SeverityScore:  74,
	}
}

func TestExplain(t *testing.T) {
	server := chatCompletionStub(t, http.StatusOK, "Two transactions locked the same rows in opposite order.")
	defer server.Close()

	explainer := NewExplainer(util.NewDiscardLogger(),
		NewProvider("primary", "test-key", server.URL+"/v1", "gpt-4o-mini"))

	explanation, err := explainer.Explain(context.Background(), sampleInfo())
	if err != nil {
		t.Fatal(err)
	}
	if explanation != "Two transactions locked the same rows in opposite order." {
		t.Errorf("unexpected explanation: %q", explanation)
	}
}

func TestExplainFallbackProvider(t *testing.T) {
	broken := chatCompletionStub(t, http.StatusInternalServerError, "")
	defer broken.Close()
	working := chatCompletionStub(t, http.StatusOK, "fallback explanation")
	defer working.Close()

	explainer := NewExplainer(util.NewDiscardLogger(),
		NewProvider("primary", "test-key", broken.URL+"/v1", "gpt-4o-mini"),
		NewProvider("fallback", "test-key", working.URL+"/v1", "gpt-4o-mini"))

	explanation, err := explainer.Explain(context.Background(), sampleInfo())
	if err != nil {
		t.Fatal(err)
	}
	if explanation != "fallback explanation" {
		t.Errorf("unexpected explanation: %q", explanation)
	}
}

func TestExplainAllProvidersFail(t *testing.T) {
	broken := chatCompletionStub(t, http.StatusInternalServerError, "")
	defer broken.Close()

	explainer := NewExplainer(util.NewDiscardLogger(),
		NewProvider("primary", "test-key", broken.URL+"/v1", "gpt-4o-mini"))

	if _, err := explainer.Explain(context.Background(), sampleInfo()); err == nil {
		t.Error("expected an error when every provider fails")
	}
}

func TestExplainerEnabled(t *testing.T) {
	if NewExplainer(util.NewDiscardLogger()).Enabled() {
		t.Error("explainer with no providers should be disabled")
	}
	if !NewExplainer(util.NewDiscardLogger(), NewProvider("p", "k", "", "m")).Enabled() {
		t.Error("explainer with a provider should be enabled")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(sampleInfo())

	for _, want := range []string{
		"Severity score: 74",
		"Cycles: 1",
		"accounts, orders",
		"Process 123 statement: UPDATE accounts SET balance = ? WHERE id = ?",
		"Root cause: lock ordering.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
