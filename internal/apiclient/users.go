package apiclient

import (
	"context"
	"net/http"

	"photoflow-web/internal/model"
)

// GetMe fetches the signed-in user's profile from the configured profile path.
func (c *Client) GetMe(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, call{method: http.MethodGet, path: c.profilePath}, &user)
	return user, err
}

func (c *Client) UpdateMe(ctx context.Context, req model.UpdateUserRequest) (model.User, error) {
	var user model.User
	err := c.do(ctx, call{method: http.MethodPut, path: c.profilePath, body: req}, &user)
	return user, err
}

func (c *Client) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) (string, error) {
	var message model.Message
	err := c.do(ctx, call{method: http.MethodPut, path: "/users/me/password", body: req}, &message)
	return string(message), err
}
