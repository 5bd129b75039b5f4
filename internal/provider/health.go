package provider

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewright/codewright/internal/chat"
)

const healthTimeout = 15 * time.Second

// HealthResult is the outcome of one provider reachability probe.
type HealthResult struct {
	Provider string
	Model    string
	OK       bool
	Latency  time.Duration
	Err      error
}

// CheckAll probes every client concurrently with a minimal request. Each
// provider has its own client, so probes are independent; results come back
// sorted by provider name.
func CheckAll(ctx context.Context, clients []*Client) []HealthResult {
	results := make([]HealthResult, len(clients))

	g, ctx := errgroup.WithContext(ctx)
	for i, client := range clients {
		g.Go(func() error {
			results[i] = check(ctx, client)
			return nil // a dead provider is a result, not a failure
		})
	}
	g.Wait() //nolint:errcheck // probe goroutines never return errors

	sort.Slice(results, func(i, j int) bool { return results[i].Provider < results[j].Provider })
	return results
}

func check(ctx context.Context, client *Client) HealthResult {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	_, err := client.adapter.send(ctx, chat.ChatRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "ping"}},
	}, nil)

	return HealthResult{
		Provider: client.cfg.ID,
		Model:    client.cfg.Model,
		OK:       err == nil,
		Latency:  time.Since(start).Round(time.Millisecond),
		Err:      err,
	}
}
