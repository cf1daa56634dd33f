package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HTTPStore talks to a vaultd sync service over its /api/entries API.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPStore(baseURL, token string, timeout time.Duration) (*HTTPStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("storage: invalid sync service url %q", baseURL)
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (h *HTTPStore) Get(ctx context.Context, id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	resp, err := h.do(ctx, http.MethodGet, id, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return "", statusError(http.MethodGet, resp)
	}
	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return "", errors.Wrap(err, "cannot decode sync service response")
	}
	if rec.Envelope == "" {
		return "", ErrMalformedRecord
	}
	return rec.Envelope, nil
}

func (h *HTTPStore) Put(ctx context.Context, id, envelope string) error {
	if err := checkID(id); err != nil {
		return err
	}
	body, err := json.Marshal(Record{Envelope: envelope})
	if err != nil {
		return errors.Wrap(err, "cannot encode entry")
	}
	resp, err := h.do(ctx, http.MethodPut, id, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(http.MethodPut, resp)
	}
	return nil
}

func (h *HTTPStore) do(ctx context.Context, method, id string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+"/api/entries/"+url.PathEscape(id), rd)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build sync request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "sync service %s", method)
	}
	return resp, nil
}

func statusError(method string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Errorf("sync service %s: %s: %s", method, resp.Status, strings.TrimSpace(string(msg)))
}
