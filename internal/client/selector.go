package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProbeResult is the outcome of a single endpoint probe.
type ProbeResult struct {
	Endpoint string
	Latency  time.Duration
	Err      error
}

// SelectEndpoint probes all candidate endpoints concurrently with a getSlot
// call and returns a client bound to the fastest responder. When every probe
// fails, it falls back to the first endpoint rather than refusing to start;
// the first endpoint in the list is the configured primary.
func SelectEndpoint(ctx context.Context, endpoints []string, apiKey string, timeout time.Duration, logger *logrus.Logger) (*Client, []ProbeResult, error) {
	if len(endpoints) == 0 {
		return nil, nil, fmt.Errorf("no RPC endpoints configured")
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]ProbeResult, len(endpoints))
	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			probe := NewClient(endpoint, apiKey, logger)
			start := time.Now()
			_, err := probe.GetSlot(probeCtx)
			results[i] = ProbeResult{
				Endpoint: endpoint,
				Latency:  time.Since(start),
				Err:      err,
			}
		}(i, endpoint)
	}
	wg.Wait()

	best := -1
	for i, r := range results {
		if r.Err != nil {
			logger.WithFields(logrus.Fields{
				"endpoint": r.Endpoint,
				"error":    r.Err.Error(),
			}).Warn("RPC endpoint probe failed")
			continue
		}
		if best == -1 || r.Latency < results[best].Latency {
			best = i
		}
	}

	if best == -1 {
		logger.WithField("endpoint", endpoints[0]).Warn("All endpoint probes failed, falling back to primary")
		return NewClient(endpoints[0], apiKey, logger), results, nil
	}

	logger.WithFields(logrus.Fields{
		"endpoint":   results[best].Endpoint,
		"latency_ms": results[best].Latency.Milliseconds(),
		"probed":     len(endpoints),
	}).Info("Selected RPC endpoint")

	return NewClient(results[best].Endpoint, apiKey, logger), results, nil
}
