package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"codewiki/internal/llm"
	"codewiki/internal/logging"
	"codewiki/internal/metrics"
	"codewiki/internal/wikierr"
)

const (
	connectTimeout = 10 * time.Second
	requestTimeout = 30 * time.Second
	pingInterval   = 30 * time.Second
)

// restClient is the shared HTTP plumbing for the ES and OS backends:
// lazy first connect under a lock, periodic pings with reconnect, and the
// same retry policy as the LLM adapters.
type restClient struct {
	hosts    []string
	username string
	password string
	backend  string

	httpClient *http.Client

	mu        sync.Mutex
	connected bool
	stopPing  chan struct{}
}

func newRESTClient(backend string, hosts []string, username, password string) *restClient {
	return &restClient{
		hosts:    hosts,
		username: username,
		password: password,
		backend:  backend,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
		stopPing: make(chan struct{}),
	}
}

// ensureConnected pings the cluster on first use. Concurrent first-open is
// serialized by the lock.
func (c *restClient) ensureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	if err := c.ping(ctx); err != nil {
		return err
	}
	c.connected = true
	go c.pingLoop()
	logging.Vector("connected to %s at %v", c.backend, c.hosts)
	return nil
}

func (c *restClient) ping(ctx context.Context) error {
	_, err := c.doOnce(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return wikierr.Wrap(wikierr.KindTransient, err, "ping %s", c.backend)
	}
	return nil
}

// pingLoop checks cluster health on an interval; a failed ping drops the
// connected flag so the next operation reconnects under the lock.
func (c *restClient) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			err := c.ping(ctx)
			cancel()
			if err != nil {
				logging.VectorError("%s ping failed, scheduling reconnect: %v", c.backend, err)
				c.mu.Lock()
				c.connected = false
				c.mu.Unlock()
				return
			}
		}
	}
}

func (c *restClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
}

// do issues one request with the shared retry policy and connection check.
func (c *restClient) do(ctx context.Context, op, method, path string, body interface{}) ([]byte, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}
	var out []byte
	err := llm.Retry(ctx, llm.DefaultMaxAttempts, func() error {
		data, err := c.doOnce(ctx, method, path, body)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.VectorOps.WithLabelValues(op, outcome).Inc()
	if err != nil {
		return nil, wikierr.Wrap(wikierr.KindTransient, err, "%s %s", c.backend, op)
	}
	return out, nil
}

func (c *restClient) doOnce(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(data)
	}
	host := c.hosts[0]
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(host, "/")+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned status %d: %s", c.backend, resp.StatusCode, truncateBody(data))
	}
	return data, nil
}

func truncateBody(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

// bulkPayload renders an NDJSON bulk-index body.
func bulkPayload(space string, records []Record) (string, error) {
	var sb strings.Builder
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			return "", wikierr.New(wikierr.KindValidation, "record missing id")
		}
		meta, _ := json.Marshal(map[string]interface{}{
			"index": map[string]interface{}{"_index": space, "_id": id},
		})
		doc, err := json.Marshal(rec)
		if err != nil {
			return "", wikierr.Wrap(wikierr.KindValidation, err, "serialize record %s", id)
		}
		sb.Write(meta)
		sb.WriteByte('\n')
		sb.Write(doc)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// doBulk sends an NDJSON body, which bypasses the JSON marshalling in do.
func (c *restClient) doBulk(ctx context.Context, op, path, ndjson string) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	err := llm.Retry(ctx, llm.DefaultMaxAttempts, func() error {
		host := c.hosts[0]
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(host, "/")+path, strings.NewReader(ndjson))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-ndjson")
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s bulk returned status %d: %s", c.backend, resp.StatusCode, truncateBody(data))
		}
		return nil
	})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.VectorOps.WithLabelValues(op, outcome).Inc()
	if err != nil {
		return wikierr.Wrap(wikierr.KindTransient, err, "%s bulk", c.backend)
	}
	return nil
}
