package model

type TenantPlan string

const (
	PlanFree       TenantPlan = "FREE"
	PlanBasic      TenantPlan = "BASIC"
	PlanPremium    TenantPlan = "PREMIUM"
	PlanEnterprise TenantPlan = "ENTERPRISE"
)

type TenantStatus string

const (
	TenantActive    TenantStatus = "ACTIVE"
	TenantSuspended TenantStatus = "SUSPENDED"
	TenantTrial     TenantStatus = "TRIAL"
	TenantCancelled TenantStatus = "CANCELLED"
	TenantInactive  TenantStatus = "INACTIVE"
)

// Tenant is a photography studio account.
type Tenant struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	Subdomain              string       `json:"subdomain"`
	Plan                   TenantPlan   `json:"plan,omitempty"`
	Status                 TenantStatus `json:"status,omitempty"`
	StorageQuotaBytes      int64        `json:"storageQuotaBytes"`
	StorageUsedBytes       int64        `json:"storageUsedBytes"`
	GalleryLimit           int          `json:"galleryLimit"`
	GalleryCount           int          `json:"galleryCount"`
	CanCreateMoreGalleries bool         `json:"canCreateMoreGalleries"`
	CreatedAt              string       `json:"createdAt"`
	UpdatedAt              string       `json:"updatedAt"`
}

// StoragePercent is used storage as a 0-100 share of quota.
func (t Tenant) StoragePercent() int {
	if t.StorageQuotaBytes <= 0 {
		return 0
	}

	pct := t.StorageUsedBytes * 100 / t.StorageQuotaBytes
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	return int(pct)
}

type UpdateTenantRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain,omitempty"`
}
