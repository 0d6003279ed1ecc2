package models

// ScimGroup is the local projection of a remote directory group. Rows in
// this table are owned entirely by the sync engine.
type ScimGroup struct {
	ID             string  `json:"id"`
	OrganizationID string  `json:"organization_id"`
	ExternalID     string  `json:"external_id"`
	DisplayName    string  `json:"display_name"`
	MappedRoleID   *string `json:"mapped_role_id,omitempty"`
	MemberCount    int     `json:"member_count"`
	LastSyncAt     *int64  `json:"last_sync_at,omitempty"`
	CreatedAt      int64   `json:"created_at"`
	UpdatedAt      int64   `json:"updated_at"`
}

// Membership existence means "this user was a member of this group as of
// the last successful sync that processed the group."
type Membership struct {
	UserID    string `json:"user_id"`
	GroupID   string `json:"group_id"`
	CreatedAt int64  `json:"created_at"`
}

// RoleGrant ties a user to a role. Sync-sourced grants carry the group
// that originated them; manual grants are never removed by the engine.
type RoleGrant struct {
	UserID    string  `json:"user_id"`
	RoleID    string  `json:"role_id"`
	Source    string  `json:"source"`
	GroupID   *string `json:"group_id,omitempty"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

// DirectoryIntegration holds per-org provider credentials and aggregate
// sync counters. ClientSecretEnc is encrypted at rest.
type DirectoryIntegration struct {
	OrganizationID           string `json:"organization_id"`
	TenantID                 string `json:"tenant_id"`
	ClientID                 string `json:"client_id"`
	ClientSecretEnc          string `json:"-"`
	CallbackTokenEnc         string `json:"-"`
	GroupPattern             string `json:"group_pattern"`
	SyncEnabled              bool   `json:"sync_enabled"`
	PeopleSyncEnabled        bool   `json:"people_sync_enabled"`
	PeopleGroupPattern       string `json:"people_group_pattern"`
	DeletePeopleOnUserDelete bool   `json:"delete_people_on_user_delete"`
	PeopleAutoDelete         bool   `json:"people_auto_delete"`
	SyncedUserCount          int    `json:"synced_user_count"`
	SyncedGroupCount         int    `json:"synced_group_count"`
	LastSyncAt               *int64 `json:"last_sync_at,omitempty"`
	LastError                string `json:"last_error,omitempty"`
	SyncInProgress           bool   `json:"sync_in_progress"`
	SyncStartedAt            *int64 `json:"sync_started_at,omitempty"`
	CreatedAt                int64  `json:"created_at"`
	UpdatedAt                int64  `json:"updated_at"`
}
