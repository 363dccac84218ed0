package confluence

import (
	"context"
	"net/url"
)

// User is the subset of a wiki user record the plugin needs.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	PublicName  string `json:"publicName"`
}

// Name returns the display name, falling back to the public name.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.PublicName
}

// CurrentUser returns the user behind the request's forwarded token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.getJSON(ctx, AsUser, "current_user", "/wiki/rest/api/user/current", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByAccountID looks a user up by account ID.
func (c *Client) UserByAccountID(ctx context.Context, id Identity, accountID string) (*User, error) {
	q := url.Values{}
	q.Set("accountId", accountID)

	var u User
	if err := c.getJSON(ctx, id, "user_by_account", "/wiki/rest/api/user", q, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
