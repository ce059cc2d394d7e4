package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"codewiki/internal/logging"
)

const (
	strengthProbes  = 32
	strengthTimeout = 30 * time.Second
)

// IsStrongEnough certifies a model can sustain pipeline load: 32 concurrent
// trivial prompts, 30 seconds each. Any timeout or error fails the probe.
func IsStrongEnough(ctx context.Context, client ChatClient) bool {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < strengthProbes; i++ {
		i := i
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, strengthTimeout)
			defer cancel()

			resp, _ := client.Chat(callCtx, "", "", "Reply with the single word: ok", nil)
			if !resp.Success {
				return fmt.Errorf("probe %d failed: %s", i, resp.Content)
			}
			if strings.Contains(resp.Content, "**ERROR**") {
				return fmt.Errorf("probe %d returned error content", i)
			}
			if callCtx.Err() != nil {
				return fmt.Errorf("probe %d timed out", i)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.APIWarn("strength test failed after %v: %v", time.Since(start), err)
		return false
	}
	logging.API("strength test passed: %d probes in %v", strengthProbes, time.Since(start))
	return true
}
