package checks

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/nexus-skeleton/libcheck/runner"
)

const uuidSamples = 100

// UUIDv4 generates random identifiers and checks their version and uniqueness
func UUIDv4(context.Context) (string, error) {
	seen := make(map[uuid.UUID]bool, uuidSamples)
	var last uuid.UUID
	for i := 0; i < uuidSamples; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("failed to generate uuid: %w", err)
		}
		if id.Version() != 4 {
			return "", fmt.Errorf("expected version 4, got %d", id.Version())
		}
		if seen[id] {
			return "", fmt.Errorf("duplicate uuid %s", id)
		}
		seen[id] = true
		last = id
	}
	return fmt.Sprintf("Generated %d unique ids, last %s", uuidSamples, last), nil
}

// UUIDv7 generates time ordered identifiers and checks they sort in creation order
func UUIDv7(context.Context) (string, error) {
	prev, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}
	for i := 1; i < uuidSamples; i++ {
		next, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("failed to generate uuid: %w", err)
		}
		if next.Version() != 7 {
			return "", fmt.Errorf("expected version 7, got %d", next.Version())
		}
		if next.String() <= prev.String() {
			return "", fmt.Errorf("uuid %s does not sort after %s", next, prev)
		}
		prev = next
	}
	return fmt.Sprintf("Generated %d ordered ids, last %s", uuidSamples, prev), nil
}

// NetInfo reports whether probeURL is reachable. It is skipped when no URL is configured.
func NetInfo(logger log.Logger, client *http.Client, probeURL string) runner.CheckFunc {
	return func(ctx context.Context) (string, error) {
		if probeURL == "" {
			return "", runner.Skip("no probe URL configured")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
		if err != nil {
			return "", fmt.Errorf("invalid probe URL %q: %w", probeURL, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("offline: %w", err)
		}
		resp.Body.Close()
		logger.Debug("Probe response", "url", probeURL, "status", resp.StatusCode)

		if resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("probe %s returned %s", probeURL, resp.Status)
		}
		return fmt.Sprintf("Connected (%s returned %d)", probeURL, resp.StatusCode), nil
	}
}
