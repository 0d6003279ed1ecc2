package models

type Organization struct {
	ID            string `json:"id"`
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	Domain        string `json:"domain"`
	DefaultRoleID string `json:"default_role_id,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	DeletedAt     *int64 `json:"deleted_at,omitempty"`
}

const (
	UserStatusActive  = "active"
	UserStatusInvited = "invited"
)

type User struct {
	ID              string  `json:"id"`
	OrganizationID  string  `json:"organization_id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	ExternalID      string  `json:"external_id,omitempty"`
	ScimProvisioned bool    `json:"scim_provisioned"`
	PersonID        *string `json:"person_id,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	UpdatedAt       int64   `json:"updated_at"`
}

const (
	SourceManual = "manual"
	SourceSync   = "sync"
)

// Person is an HR directory record. It may exist without an application
// User and vice versa; User.PersonID is a nullable reference, not a
// containment.
type Person struct {
	ID                   string  `json:"id"`
	OrganizationID       string  `json:"organization_id"`
	Email                string  `json:"email"`
	Slug                 string  `json:"slug"`
	Name                 string  `json:"name"`
	Source               string  `json:"source"`
	ExternalID           string  `json:"external_id,omitempty"`
	ExternalGroupID      string  `json:"external_group_id,omitempty"`
	ExternalGroupName    string  `json:"external_group_name,omitempty"`
	LastSyncedAt         *int64  `json:"last_synced_at,omitempty"`
	SyncEnabled          bool    `json:"sync_enabled"`
	ManagerID            *string `json:"manager_id,omitempty"`
	Role                 string  `json:"role,omitempty"`
	Team                 string  `json:"team,omitempty"`
	Location             string  `json:"location,omitempty"`
	Phone                string  `json:"phone,omitempty"`
	StartDate            string  `json:"start_date,omitempty"`
	HireDate             string  `json:"hire_date,omitempty"`
	LeaveDate            string  `json:"leave_date,omitempty"`
	ProviderCreatedAt    *int64  `json:"provider_created_at,omitempty"`
	LastSignInAt         *int64  `json:"last_sign_in_at,omitempty"`
	LastPasswordChangeAt *int64  `json:"last_password_change_at,omitempty"`
	CreatedAt            int64   `json:"created_at"`
	UpdatedAt            int64   `json:"updated_at"`
}

type Role struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	IsDefault      bool   `json:"is_default"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}
