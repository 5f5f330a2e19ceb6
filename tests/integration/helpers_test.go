//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

type guestInfo struct {
	ID          string
	AccessToken string
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func baseURL() string {
	return envOrDefault("INTEGRATION_BASE_URL", "http://localhost:8080")
}

func packID() string {
	return envOrDefault("INTEGRATION_PACK_ID", "general")
}

func createGuest(t *testing.T, displayName string) guestInfo {
	t.Helper()

	var out struct {
		UserID      string `json:"user_id"`
		AccessToken string `json:"access_token"`
	}
	body := map[string]string{"display_name": fmt.Sprintf("%s-%d", displayName, time.Now().UnixNano()%100000)}
	if status := doJSON(t, http.MethodPost, "/v1/auth/guest", "", body, &out); status != http.StatusCreated {
		t.Fatalf("unexpected guest response status: %d", status)
	}
	if out.AccessToken == "" {
		t.Fatalf("empty access token in guest response")
	}
	return guestInfo{ID: out.UserID, AccessToken: out.AccessToken}
}

// doJSON sends body as JSON and decodes the response into out when out is non-nil.
func doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL()+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type session struct {
	ID                   string `json:"id"`
	JoinCode             string `json:"join_code"`
	Status               string `json:"status"`
	QuestionCount        int    `json:"question_count"`
	CurrentQuestionIndex int    `json:"current_question_index"`
}

type participant struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

type seat struct {
	Session     session     `json:"session"`
	Participant participant `json:"participant"`
}

type questionView struct {
	Index         int      `json:"question_index"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}
