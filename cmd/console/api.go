package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jwebster45206/storyforge/pkg/state"
	"github.com/jwebster45206/storyforge/pkg/story"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// StorySummary mirrors an entry of GET /v1/stories.
type StorySummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	TotalScenes int    `json:"totalScenes"`
}

// GameView mirrors the game summary the API returns.
type GameView struct {
	State            *state.GameState `json:"state"`
	Mode             state.Mode       `json:"mode"`
	Progress         int              `json:"progress"`
	RemainingMinutes int              `json:"remainingMinutes"`
	PlaytimeMinutes  int              `json:"playtimeMinutes"`
	Ending           bool             `json:"ending"`
}

// ChoiceOutcome mirrors the response of POST /v1/games/{id}/choices.
type ChoiceOutcome struct {
	Scene     *story.Scene     `json:"scene"`
	State     *state.GameState `json:"state"`
	Generated bool             `json:"generated"`
	Restarted bool             `json:"restarted"`
	Ended     bool             `json:"ended"`
	Progress  int              `json:"progress"`
}

type apiClient struct {
	http    *http.Client
	baseURL string
}

func (c *apiClient) testConnection() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends a request and decodes the JSON response into out when the status
// is want. Any other status is turned into an error carrying the API message.
func (c *apiClient) do(method, path string, body any, want int, out any) error {
	var rd io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}
	if out == nil {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(data)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) listStories() ([]StorySummary, error) {
	var out []StorySummary
	err := c.do(http.MethodGet, "/v1/stories", nil, http.StatusOK, &out)
	return out, err
}

func (c *apiClient) createGame(storyID string, mode state.Mode) (*GameView, error) {
	req := map[string]string{"storyId": storyID, "mode": string(mode)}
	var out GameView
	if err := c.do(http.MethodPost, "/v1/games", req, http.StatusCreated, &out); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return &out, nil
}

func (c *apiClient) getGame(id string) (*GameView, error) {
	var out GameView
	if err := c.do(http.MethodGet, "/v1/games/"+id, nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &out, nil
}

func (c *apiClient) choose(gameID, choiceID string) (*ChoiceOutcome, error) {
	var out ChoiceOutcome
	req := map[string]string{"choiceId": choiceID}
	if err := c.do(http.MethodPost, "/v1/games/"+gameID+"/choices", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) save(gameID, name string) (string, error) {
	var out struct {
		SaveID string `json:"saveId"`
	}
	req := map[string]string{"name": name}
	if err := c.do(http.MethodPost, "/v1/games/"+gameID+"/save", req, http.StatusCreated, &out); err != nil {
		return "", fmt.Errorf("failed to save: %w", err)
	}
	return out.SaveID, nil
}

func (c *apiClient) export(saveID string) (string, error) {
	var text string
	if err := c.do(http.MethodGet, "/v1/saves/"+saveID+"/export", nil, http.StatusOK, &text); err != nil {
		return "", fmt.Errorf("failed to export save: %w", err)
	}
	return text, nil
}

func (c *apiClient) loadSave(saveID string) (*GameView, error) {
	var out GameView
	if err := c.do(http.MethodGet, "/v1/saves/"+saveID, nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("failed to load save: %w", err)
	}
	return &out, nil
}
