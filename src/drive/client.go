// Package drive applies executed governance decisions to the external
// content-addressed file store.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stake-plus/filedao/src/governance"
	"github.com/stake-plus/filedao/src/logging"
	"github.com/stake-plus/filedao/src/webclient"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retry   webclient.Retry
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    webclient.NewDefault(30 * time.Second),
		retry:   webclient.Retry{Attempts: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second},
	}
}

// Apply marks the content deleted for Delete and public for Share. Upload
// needs no store change since the content was stored before proposing.
func (c *Client) Apply(ctx context.Context, eff governance.Effect) error {
	var op string
	switch eff.Type {
	case governance.Delete:
		op = "delete"
	case governance.Share:
		op = "publish"
	default:
		return nil
	}
	path := fmt.Sprintf("/objects/%s/%s", url.PathEscape(eff.CID), op)
	return c.post(ctx, op, path, map[string]interface{}{"proposalId": eff.ProposalID})
}

func (c *Client) post(ctx context.Context, op, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	status, resp, err := webclient.DoWithRetry(ctx, c.retry, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			req.Header.Set("X-Auth-Provider", "apikey")
		}
		res, err := c.http.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer res.Body.Close()
		b, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		return res.StatusCode, b, err
	})
	if err != nil {
		return fmt.Errorf("drive %s: %w", op, err)
	}
	if status < 200 || status >= 300 {
		return &logging.HTTPError{Op: "drive " + op, Status: status, Body: strings.TrimSpace(string(resp))}
	}
	return nil
}
