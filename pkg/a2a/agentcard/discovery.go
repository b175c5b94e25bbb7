package agentcard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-http-utils/headers"
	"github.com/jllopis/a2apipe/pkg/a2a"
)

// Discovery constants for AgentCard HTTP endpoints.
const (
	// WellKnownPath is the standardized location for AgentCard discovery.
	WellKnownPath = "/.well-known/agent-card.json"
	// DefaultMediaType is the media type cards are served with.
	DefaultMediaType = "application/json"
)

// PublishHandler serves the provided AgentCard as JSON.
func PublishHandler(card *a2a.AgentCard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if card == nil {
			http.Error(w, "agent card not configured", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set(headers.Allow, "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload, err := json.Marshal(card)
		if err != nil {
			http.Error(w, "failed to encode agent card", http.StatusInternalServerError)
			return
		}
		w.Header().Set(headers.ContentType, DefaultMediaType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	})
}

// Fetch retrieves an AgentCard from a base URL. A nil client uses http.DefaultClient.
func Fetch(ctx context.Context, client *http.Client, baseURL string) (*a2a.AgentCard, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(baseURL, "/") + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headers.Accept, DefaultMediaType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent card fetch failed: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var card a2a.AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	return &card, nil
}
