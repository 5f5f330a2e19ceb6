//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
)

func TestGameFlow(t *testing.T) {
	host := createGuest(t, "Host")
	player := createGuest(t, "Player")

	var created seat
	status := doJSON(t, http.MethodPost, "/v1/games", host.AccessToken, map[string]any{
		"pack_id": packID(), "max_participants": 4, "question_count": 2, "time_limit_seconds": 20,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create session status = %d", status)
	}
	sessionID := created.Session.ID

	var joined seat
	status = doJSON(t, http.MethodPost, "/v1/games/join", player.AccessToken,
		map[string]string{"join_code": created.Session.JoinCode}, &joined)
	if status != http.StatusOK && status != http.StatusCreated {
		t.Fatalf("join status = %d", status)
	}
	if joined.Session.ID != sessionID {
		t.Fatalf("joined %s, want %s", joined.Session.ID, sessionID)
	}

	if status := doJSON(t, http.MethodPost, fmt.Sprintf("/v1/games/%s/start", sessionID), player.AccessToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("non-host start status = %d, want 403", status)
	}
	var started session
	if status := doJSON(t, http.MethodPost, fmt.Sprintf("/v1/games/%s/start", sessionID), host.AccessToken, nil, &started); status != http.StatusOK {
		t.Fatalf("start status = %d", status)
	}
	if started.Status != "active" {
		t.Fatalf("status after start = %s", started.Status)
	}

	for index := 0; index < started.QuestionCount; index++ {
		var hostView questionView
		path := fmt.Sprintf("/v1/games/%s/questions/%d", sessionID, index)
		if status := doJSON(t, http.MethodGet, path, host.AccessToken, nil, &hostView); status != http.StatusOK {
			t.Fatalf("host question %d status = %d", index, status)
		}
		var playerView questionView
		if status := doJSON(t, http.MethodGet, path, player.AccessToken, nil, &playerView); status != http.StatusOK {
			t.Fatalf("player question %d status = %d", index, status)
		}
		if playerView.CorrectAnswer != "" {
			t.Fatalf("player view of open question %d leaks the answer", index)
		}

		answer := map[string]any{"question_index": index, "answer": hostView.CorrectAnswer}
		answersPath := fmt.Sprintf("/v1/games/%s/answers", sessionID)
		if status := doJSON(t, http.MethodPost, answersPath, player.AccessToken, answer, nil); status != http.StatusOK {
			t.Fatalf("answer %d status = %d", index, status)
		}
		if status := doJSON(t, http.MethodPost, answersPath, player.AccessToken, answer, nil); status != http.StatusConflict {
			t.Fatalf("duplicate answer %d status = %d, want 409", index, status)
		}
		if status := doJSON(t, http.MethodPost, fmt.Sprintf("/v1/games/%s/advance", sessionID), host.AccessToken, nil, nil); status != http.StatusOK {
			t.Fatalf("advance from %d status = %d", index, status)
		}
	}

	var results struct {
		Final        bool `json:"final"`
		Participants []struct {
			Rank   int    `json:"rank"`
			UserID string `json:"user_id"`
			Score  int    `json:"score"`
		} `json:"participants"`
	}
	if status := doJSON(t, http.MethodGet, fmt.Sprintf("/v1/games/%s/results", sessionID), host.AccessToken, nil, &results); status != http.StatusOK {
		t.Fatalf("results status = %d", status)
	}
	if !results.Final {
		t.Fatalf("results of completed session are not final")
	}
	if len(results.Participants) != 2 || results.Participants[0].UserID != player.ID {
		t.Fatalf("expected the answering player to rank first: %+v", results.Participants)
	}
	if results.Participants[0].Score < 2*100 {
		t.Fatalf("player score %d below two minimum awards", results.Participants[0].Score)
	}
}

func TestGameErrors(t *testing.T) {
	guest := createGuest(t, "Errors")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"missing token", http.MethodPost, "/v1/games", "", map[string]any{"pack_id": packID()}, http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/games/unknown", "not-a-jwt", nil, http.StatusUnauthorized},
		{"unknown session", http.MethodGet, "/v1/games/00000000-0000-0000-0000-000000000000", guest.AccessToken, nil, http.StatusNotFound},
		{"unknown join code", http.MethodPost, "/v1/games/join", guest.AccessToken, map[string]string{"join_code": "ZZZZZZ"}, http.StatusNotFound},
		{"missing pack", http.MethodPost, "/v1/games", guest.AccessToken, map[string]any{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := doJSON(t, tt.method, tt.path, tt.token, tt.body, nil); status != tt.status {
				t.Fatalf("%s %s status = %d, want %d", tt.method, tt.path, status, tt.status)
			}
		})
	}
}
