// Package automation provides the HTTP realization of the engine's browser
// automation port. It talks to a local automation bridge (the browser
// extension host) over a small REST surface: open a background tab, poll its
// load status, inject the field extractor and exchange the scan command.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deal-scanner/internal/engine"
)

const (
	httpTimeout  = 15 * time.Second
	loadPollStep = 500 * time.Millisecond
)

// BridgeDriver implements engine.TabDriver against an automation bridge
type BridgeDriver struct {
	baseURL string
	client  *http.Client
}

// NewBridgeDriver constructs a driver with a shared HTTP client
func NewBridgeDriver(baseURL string) *BridgeDriver {
	return &BridgeDriver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

type openTabRequest struct {
	URL        string `json:"url"`
	Background bool   `json:"background"`
}

type openTabResponse struct {
	TabID string `json:"tabId"`
}

type tabStatusResponse struct {
	Status string `json:"status"` // "loading" or "complete"
}

// OpenTab opens a background, non-focused tab at the given URL
func (d *BridgeDriver) OpenTab(ctx context.Context, url string) (engine.TabHandle, error) {
	var resp openTabResponse
	err := d.post(ctx, "/tabs", openTabRequest{URL: url, Background: true}, &resp)
	if err != nil {
		return "", err
	}
	if resp.TabID == "" {
		return "", fmt.Errorf("bridge returned empty tab id")
	}
	return engine.TabHandle(resp.TabID), nil
}

// AwaitLoad polls the tab's load status until it completes or the timeout
// elapses
func (d *BridgeDriver) AwaitLoad(ctx context.Context, tab engine.TabHandle, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(loadPollStep)
	defer ticker.Stop()

	for {
		var status tabStatusResponse
		if err := d.get(ctx, fmt.Sprintf("/tabs/%s/status", tab), &status); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("page load timed out after %s", timeout)
			}
			return err
		}
		if status.Status == "complete" {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("page load timed out after %s", timeout)
		}
	}
}

// InjectExtractor injects the field extractor script into the tab
func (d *BridgeDriver) InjectExtractor(ctx context.Context, tab engine.TabHandle) error {
	return d.post(ctx, fmt.Sprintf("/tabs/%s/inject", tab), nil, nil)
}

// SendScanCommand sends the scan command and waits for the extractor's
// response, up to the given timeout
func (d *BridgeDriver) SendScanCommand(ctx context.Context, tab engine.TabHandle, payload engine.ScanPayload, timeout time.Duration) (*engine.ScanResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var resp engine.ScanResponse
	if err := d.post(ctx, fmt.Sprintf("/tabs/%s/scan", tab), payload, &resp); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("no scan response within %s", timeout)
		}
		return nil, err
	}
	return &resp, nil
}

// CloseTab closes the tab. Closing an already-gone tab is not an error.
func (d *BridgeDriver) CloseTab(tab engine.TabHandle) error {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, d.baseURL+fmt.Sprintf("/tabs/%s", tab), nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http DELETE: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("bridge returned %d closing tab", resp.StatusCode)
	}
	return nil
}

func (d *BridgeDriver) post(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return d.do(req, out)
}

func (d *BridgeDriver) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	return d.do(req, out)
}

func (d *BridgeDriver) do(req *http.Request, out interface{}) error {
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, string(raw))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("json unmarshal: %w", err)
		}
	}
	return nil
}
