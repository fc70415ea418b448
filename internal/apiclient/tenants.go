package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"photoflow-web/internal/model"
)

func (c *Client) GetTenant(ctx context.Context, tenantID string) (model.Tenant, error) {
	var tenant model.Tenant
	err := c.do(ctx, call{method: http.MethodGet, path: tenantPath(tenantID)}, &tenant)
	return tenant, err
}

func (c *Client) UpdateTenant(ctx context.Context, tenantID string, req model.UpdateTenantRequest) (model.Tenant, error) {
	var tenant model.Tenant
	err := c.do(ctx, call{method: http.MethodPut, path: tenantPath(tenantID), body: req}, &tenant)
	return tenant, err
}

// GetMyTenant resolves the caller's tenant id through the profile first.
func (c *Client) GetMyTenant(ctx context.Context) (model.Tenant, error) {
	tenantID, err := c.myTenantID(ctx)
	if err != nil {
		return model.Tenant{}, err
	}

	return c.GetTenant(ctx, tenantID)
}

func (c *Client) UpdateMyTenant(ctx context.Context, req model.UpdateTenantRequest) (model.Tenant, error) {
	tenantID, err := c.myTenantID(ctx)
	if err != nil {
		return model.Tenant{}, err
	}

	return c.UpdateTenant(ctx, tenantID, req)
}

func (c *Client) myTenantID(ctx context.Context) (string, error) {
	user, err := c.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve tenant: %w", err)
	}
	if strings.TrimSpace(user.TenantID) == "" {
		return "", model.ErrNoTenant
	}

	return user.TenantID, nil
}

func tenantPath(tenantID string) string {
	return "/tenants/" + url.PathEscape(tenantID)
}
