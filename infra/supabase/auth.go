package supabase

import (
	"context"
	"fmt"
	"net/http"
)

// GetUser resolves an access token to its user. The lookup has its own
// deadline and is attempted once.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.authTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.do("auth user", c.authClient, req)
	if err != nil {
		return nil, err
	}

	var user User
	if err := resp.JSON(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return nil, &Error{StatusCode: http.StatusUnauthorized, Message: "user payload has no id"}
	}
	return &user, nil
}
