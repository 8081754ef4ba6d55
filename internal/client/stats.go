package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/BioHazard786/pairlink/internal/room"
)

// FetchStats reads the relay's room statistics from statsURL.
func FetchStats(ctx context.Context, statsURL string) (room.Stats, error) {
	var stats room.Stats
	err := getJSON(ctx, statsURL, &stats)
	return stats, err
}

// FetchFreshRoom asks the relay for the name of a room nobody is in.
func FetchFreshRoom(ctx context.Context, url string) (string, error) {
	var resp struct {
		Room string `json:"room"`
	}
	if err := getJSON(ctx, url, &resp); err != nil {
		return "", err
	}
	if resp.Room == "" {
		return "", fmt.Errorf("relay returned no room name")
	}
	return resp.Room, nil
}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
