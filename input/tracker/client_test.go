package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/pgsleuth/pgsleuth/util"
)

func TestEventErrorText(t *testing.T) {
	event := Event{Title: "OperationalError", Message: "plain message"}
	if text := event.ErrorText(); text != "plain message" {
		t.Errorf("message fallback: got %q", text)
	}

	event = Event{Title: "OperationalError"}
	if text := event.ErrorText(); text != "OperationalError" {
		t.Errorf("title fallback: got %q", text)
	}

	var withException Event
	payload := `{
		"eventID": "abc",
		"title": "OperationalError",
		"entries": [
			{"type": "breadcrumbs", "data": {}},
			{"type": "exception", "data": {"values": [{"type": "DeadlockDetected", "value": "deadlock detected"}]}}
		]
	}`
	if err := json.Unmarshal([]byte(payload), &withException); err != nil {
		t.Fatal(err)
	}
	if text := withException.ErrorText(); text != "deadlock detected" {
		t.Errorf("exception value should win: got %q", text)
	}
}

func TestGetEvent(t *testing.T) {
	var requestedPath string
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		authorization = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(Event{EventID: "abc123", Title: "OperationalError", Message: "deadlock detected"})
	}))
	defer server.Close()

	client := NewClient(util.NewDiscardLogger(), server.URL, "secret", "my-org", "my-project")
	event, err := client.GetEvent("abc123")
	if err != nil {
		t.Fatal(err)
	}

	if event.EventID != "abc123" || event.Message != "deadlock detected" {
		t.Errorf("unexpected event: %+v", event)
	}
	if requestedPath != "/api/0/projects/my-org/my-project/events/abc123/" {
		t.Errorf("unexpected path: %s", requestedPath)
	}
	if authorization != "Bearer secret" {
		t.Errorf("unexpected authorization header: %s", authorization)
	}
}

func TestGetEventAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(util.NewDiscardLogger(), server.URL, "bad-key", "my-org", "my-project")
	if _, err := client.GetEvent("abc123"); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestListRecentEventIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if query := r.URL.Query().Get("query"); query != "deadlock detected" {
			t.Errorf("unexpected search query: %q", query)
		}
		json.NewEncoder(w).Encode([]Event{{EventID: "one"}, {EventID: "two"}})
	}))
	defer server.Close()

	client := NewClient(util.NewDiscardLogger(), server.URL, "secret", "my-org", "my-project")
	ids, err := client.ListRecentEventIDs()
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Compare([]string{"one", "two"}, ids); diff != "" {
		t.Errorf("ids diff: (-want +got)\n%s", diff)
	}
}
