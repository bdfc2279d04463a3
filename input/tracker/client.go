package tracker

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/pgsleuth/pgsleuth/util"
)

// Event - An error event as returned by the issue tracker API. Only the
// fields the analyzer needs are mapped.
type Event struct {
	EventID string `json:"eventID"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Culprit string `json:"culprit"`

	Entries []struct {
		Type string `json:"type"`
		Data struct {
			Values []struct {
				Type  string `json:"type"`
				Value string `json:"value"`
			} `json:"values"`
		} `json:"data"`
	} `json:"entries"`
}

// ErrorText - The raw error message carried by the event: the exception
// value when one exists, otherwise the plain message/title
func (event Event) ErrorText() string {
	for _, entry := range event.Entries {
		if entry.Type != "exception" {
			continue
		}
		for _, value := range entry.Data.Values {
			if value.Value != "" {
				return value.Value
			}
		}
	}
	if event.Message != "" {
		return event.Message
	}
	return event.Title
}

// ToRecord - The event as the generic record shape the analyzer accepts
func (event Event) ToRecord() map[string]interface{} {
	return map[string]interface{}{
		"message": event.ErrorText(),
		"title":   event.Title,
	}
}

type Client struct {
	BaseURL      string
	APIKey       string
	Organization string
	Project      string
	HTTPClient   *http.Client
	Logger       *util.Logger
}

func NewClient(logger *util.Logger, baseURL string, apiKey string, organization string, project string) *Client {
	return &Client{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Organization: organization,
		Project:      project,
		HTTPClient:   http.DefaultClient,
		Logger:       logger,
	}
}

func (client *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest("GET", client.BaseURL+path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+client.APIKey)
	req.Header.Add("Accept", "application/json")

	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("tracker API returned %d: %s", resp.StatusCode, body)
	}

	return json.Unmarshal(body, out)
}

// GetEvent - Fetches a single event by its id
func (client *Client) GetEvent(eventID string) (Event, error) {
	event := Event{}
	path := fmt.Sprintf("/api/0/projects/%s/%s/events/%s/",
		url.PathEscape(client.Organization), url.PathEscape(client.Project), url.PathEscape(eventID))
	if err := client.get(path, &event); err != nil {
		return Event{}, errors.Wrap(err, "failed to fetch event")
	}
	return event, nil
}

// ListRecentEventIDs - Event ids of recent error events matching the
// deadlock search, used by the poll scheduler
func (client *Client) ListRecentEventIDs() ([]string, error) {
	var events []Event
	path := fmt.Sprintf("/api/0/projects/%s/%s/events/?query=%s",
		url.PathEscape(client.Organization), url.PathEscape(client.Project), url.QueryEscape("deadlock detected"))
	if err := client.get(path, &events); err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	ids := make([]string, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.EventID)
	}
	return ids, nil
}
