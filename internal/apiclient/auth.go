package apiclient

import (
	"context"
	"net/http"

	"photoflow-web/internal/model"
)

// Register creates an unverified account. Both tokens come back null until
// the email is verified.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResult, error) {
	var result model.AuthResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: req, public: true}, &result)
	return result, err
}

func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error) {
	var result model.AuthResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/login", body: req, public: true}, &result)
	return result, err
}

// Refresh exchanges a refresh token for a new pair. It does not touch the
// token store.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.AuthResult, error) {
	return c.refresh(ctx, refreshToken)
}

func (c *Client) Logout(ctx context.Context) (string, error) {
	var message model.Message
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/logout", public: true}, &message)
	return string(message), err
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	var message model.Message
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/verify-email", body: model.VerifyEmailRequest{Token: token}, public: true}, &message)
	return string(message), err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var message model.Message
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/forgot-password", body: model.EmailRequest{Email: email}, public: true}, &message)
	return string(message), err
}

func (c *Client) ResetPassword(ctx context.Context, token string, newPassword string) (string, error) {
	var message model.Message
	body := model.ResetPasswordRequest{Token: token, NewPassword: newPassword}
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/reset-password", body: body, public: true}, &message)
	return string(message), err
}

func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	var message model.Message
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/resend-verification", body: model.EmailRequest{Email: email}, public: true}, &message)
	return string(message), err
}
