package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/okiro/relais/internal/api"
)

// httpClient is shared by the client commands. The daemon answers locally,
// so a short timeout beats hanging a shell pipeline.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiBase normalizes a listen address into a base URL: ":8080" becomes
// "http://localhost:8080".
func apiBase(addr string) string {
	if addr == "" {
		addr = "localhost:8090"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return addr
}

// clientBase resolves the daemon base URL from a command's --addr flag,
// falling back to the configured server address.
func clientBase(flagAddr string) string {
	addr := flagAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return apiBase(addr)
}

// callAPI performs one request against the daemon and decodes the JSON
// response into out (skipped when out is nil). Error responses surface the
// daemon's message and code instead of a bare status line.
func callAPI(method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("connecting to %s (is 'relais daemon' running?): %w", url, err)
		}
		return fmt.Errorf("calling %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
