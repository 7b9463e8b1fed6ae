package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Upload writes data to bucket/path.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	reqURL := fmt.Sprintf("%s/object/%s/%s", c.storageURL, url.PathEscape(bucket), escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", strconv.FormatBool(upsert))

	_, err = c.do("storage upload", c.httpClient, req)
	return err
}

// CreateSignedUploadURL returns a grant that lets a client POST the object
// directly to Storage.
func (c *Client) CreateSignedUploadURL(ctx context.Context, bucket, path string) (*SignedUploadURL, error) {
	reqURL := fmt.Sprintf("%s/object/upload/sign/%s/%s", c.storageURL, url.PathEscape(bucket), escapePath(path))
	req, err := c.newJSONRequest(ctx, http.MethodPost, reqURL, map[string]any{})
	if err != nil {
		return nil, err
	}
	resp, err := c.do("storage sign upload", c.httpClient, req)
	if err != nil {
		return nil, err
	}

	var result struct {
		URL   string `json:"url"`
		Token string `json:"token"`
	}
	if err := resp.JSON(&result); err != nil {
		return nil, fmt.Errorf("decode signed upload: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("signed upload response has no url")
	}

	token := result.Token
	if token == "" {
		if parsed, err := url.Parse(result.URL); err == nil {
			token = parsed.Query().Get("token")
		}
	}
	return &SignedUploadURL{
		URL:   c.storageURL + result.URL,
		Token: token,
		Path:  path,
	}, nil
}
