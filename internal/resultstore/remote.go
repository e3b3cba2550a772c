package resultstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dgallion1/qcsr/internal/results"
)

// RemoteStore talks to a results service over HTTP JSON.
type RemoteStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteStore(baseURL, apiKey string) *RemoteStore {
	return &RemoteStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *RemoteStore) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// statusError turns a failed response into an error, retryable for 429 and
// 5xx.
func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// Save stores the report with PUT /reports/{docID}.
func (c *RemoteStore) Save(ctx context.Context, rep Report, res []results.Result) error {
	body, err := json.Marshal(StoredReport{Report: rep, Results: res})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPut, "/reports/"+url.PathEscape(rep.DocID), bytes.NewReader(body))
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return statusError("put report "+rep.DocID, resp)
	}
	return nil
}

// Results fetches GET /reports/{docID}.
func (c *RemoteStore) Results(ctx context.Context, docID string) (*StoredReport, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/reports/"+url.PathEscape(docID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get report "+docID, resp)
	}

	var out StoredReport
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &out, nil
}

// FindByHash queries GET /reports?hash=.
func (c *RemoteStore) FindByHash(ctx context.Context, hash string) (*Report, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/reports?hash="+url.QueryEscape(hash), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("find report", resp)
	}

	var result struct {
		Reports []Report `json:"reports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	if len(result.Reports) == 0 {
		return nil, nil
	}
	return &result.Reports[0], nil
}

// Delete issues DELETE /reports/{docID}.
func (c *RemoteStore) Delete(ctx context.Context, docID string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, "/reports/"+url.PathEscape(docID), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("delete report: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, statusError("delete report "+docID, resp)
}

// Close releases idle connections.
func (c *RemoteStore) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
