package types

import (
	"strings"
	"time"
)

// Role is the account kind of a user.
type Role string

const (
	RoleIndividual Role = "individual"
	RoleAgency     Role = "agency"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleIndividual, RoleAgency, RoleAdmin:
		return true
	}
	return false
}

// SelfService reports whether r may be chosen at registration.
// The admin role is only assigned by out-of-band provisioning.
func (r Role) SelfService() bool {
	return r == RoleIndividual || r == RoleAgency
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id"`

	// Name is the user's display name.
	Name string `json:"name"`

	// Email is the user's email address. It is stored lowercased and is
	// unique across all accounts.
	Email string `json:"email"`

	// Phone is the user's phone number in E.164 form.
	Phone string `json:"phone"`

	// Role indicates the account kind: individual, agency or admin.
	Role Role `json:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-"`

	// IsActive gates every authenticated request. Disabled accounts are
	// rejected even with a valid token.
	IsActive bool `json:"isActive"`

	// IsVerified marks accounts checked by the operators.
	IsVerified bool `json:"isVerified"`

	// AgencyInfo is set for agency accounts.
	AgencyInfo *AgencyInfo `json:"agencyInfo,omitempty"`

	// ProfileImage is the public URL of the user's avatar.
	ProfileImage string `json:"profileImage,omitempty"`

	// Location is the user's home city/district.
	Location *UserLocation `json:"location,omitempty"`

	// LastLoginAt is the timestamp of the most recent successful login.
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt"`
}

// AgencyInfo holds the registration details of a real-estate agency.
type AgencyInfo struct {
	AgencyName    string `json:"agencyName"`
	LicenseNumber string `json:"licenseNumber"`
	LicenseImage  string `json:"licenseImage,omitempty"`
	Description   string `json:"description,omitempty"`
}

type UserLocation struct {
	City         string `json:"city,omitempty"`
	District     string `json:"district,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// ProfileUpdate lists the self-service fields of a user. Nil fields are
// left untouched. Role, email and activation are deliberately absent.
type ProfileUpdate struct {
	Name         *string
	Phone        *string
	ProfileImage *string
	Location     *UserLocation
	AgencyInfo   *AgencyInfo
	PasswordHash *string
}

// UserFilter narrows user searches.
type UserFilter struct {
	Query      string
	Role       Role
	ActiveOnly bool
}

// UserCounts aggregates account numbers for the admin dashboard.
type UserCounts struct {
	Total    int          `json:"total"`
	Active   int          `json:"active"`
	Inactive int          `json:"inactive"`
	ByRole   map[Role]int `json:"byType"`
}

// OwnerSummary is the public view of a property owner.
type OwnerSummary struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone"`
	ProfileImage string        `json:"profileImage,omitempty"`
	Role         Role          `json:"role"`
	AgencyName   string        `json:"agencyName,omitempty"`
	Location     *UserLocation `json:"location,omitempty"`
}

// Summary returns the public owner view of u.
func (u User) Summary() OwnerSummary {
	summary := OwnerSummary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		ProfileImage: u.ProfileImage,
		Role:         u.Role,
		Location:     u.Location,
	}
	if u.AgencyInfo != nil {
		summary.AgencyName = u.AgencyInfo.AgencyName
	}
	return summary
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
