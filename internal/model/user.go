package model

import (
	"strings"
	"unicode"
)

type PlatformRole string

const (
	RoleUser          PlatformRole = "USER"
	RoleTenantOwner   PlatformRole = "TENANT_OWNER"
	RolePlatformAdmin PlatformRole = "PLATFORM_ADMIN"
)

// RoleOrder lists platform roles from least to most privileged.
var RoleOrder = []PlatformRole{RoleUser, RoleTenantOwner, RolePlatformAdmin}

// Rank is the role's position in RoleOrder, or -1 for an unknown role.
func (r PlatformRole) Rank() int {
	for i, role := range RoleOrder {
		if role == r {
			return i
		}
	}

	return -1
}

func (r PlatformRole) Valid() bool {
	return r.Rank() >= 0
}

// AtLeast reports whether r grants everything required grants. Unknown roles
// on either side never satisfy the check.
func (r PlatformRole) AtLeast(required PlatformRole) bool {
	have, need := r.Rank(), required.Rank()
	if have < 0 || need < 0 {
		return false
	}

	return have >= need
}

func (r PlatformRole) DisplayName() string {
	switch r {
	case RolePlatformAdmin:
		return "Platform Admin"
	case RoleTenantOwner:
		return "Studio Owner"
	case RoleUser:
		return "User"
	default:
		return string(r)
	}
}

type User struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	PlatformRole  PlatformRole `json:"platformRole"`
	TenantID      string       `json:"tenantId"`
	EmailVerified bool         `json:"emailVerified"`
	CreatedAt     string       `json:"createdAt"`
	UpdatedAt     string       `json:"updatedAt"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Initials returns up to two upper-case letters for avatars.
func (u User) Initials() string {
	var out []rune
	for _, part := range []string{u.FirstName, u.LastName} {
		for _, r := range strings.TrimSpace(part) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
	}

	if len(out) == 0 {
		for _, r := range u.Email {
			if unicode.IsLetter(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
	}

	return string(out)
}

type UpdateUserRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
