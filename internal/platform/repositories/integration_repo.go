package repositories

import (
	"database/sql"
	"time"

	"backoffice/internal/platform/models"
)

type IntegrationRepository struct {
	db *sql.DB
}

func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

const integrationColumns = `organization_id, tenant_id, client_id, client_secret_enc, callback_token_enc, group_pattern, sync_enabled,
	people_sync_enabled, people_group_pattern, delete_people_on_user_delete, people_auto_delete,
	synced_user_count, synced_group_count, last_sync_at, last_error, sync_in_progress, sync_started_at,
	created_at, updated_at`

func (r *IntegrationRepository) GetByOrg(orgID string) (*models.DirectoryIntegration, error) {
	i := &models.DirectoryIntegration{}
	err := r.db.QueryRow(`
		SELECT `+integrationColumns+` FROM directory_integrations WHERE organization_id = ?
	`, orgID).Scan(&i.OrganizationID, &i.TenantID, &i.ClientID, &i.ClientSecretEnc, &i.CallbackTokenEnc, &i.GroupPattern, &i.SyncEnabled,
		&i.PeopleSyncEnabled, &i.PeopleGroupPattern, &i.DeletePeopleOnUserDelete, &i.PeopleAutoDelete,
		&i.SyncedUserCount, &i.SyncedGroupCount, &i.LastSyncAt, &i.LastError, &i.SyncInProgress, &i.SyncStartedAt,
		&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return i, nil
}

func (r *IntegrationRepository) Upsert(i *models.DirectoryIntegration) error {
	now := time.Now().Unix()
	if i.CreatedAt == 0 {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
	_, err := r.db.Exec(`
		INSERT INTO directory_integrations (organization_id, tenant_id, client_id, client_secret_enc, callback_token_enc, group_pattern, sync_enabled,
			people_sync_enabled, people_group_pattern, delete_people_on_user_delete, people_auto_delete,
			synced_user_count, synced_group_count, last_sync_at, last_error, sync_in_progress, sync_started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			client_id = excluded.client_id,
			client_secret_enc = excluded.client_secret_enc,
			callback_token_enc = excluded.callback_token_enc,
			group_pattern = excluded.group_pattern,
			sync_enabled = excluded.sync_enabled,
			people_sync_enabled = excluded.people_sync_enabled,
			people_group_pattern = excluded.people_group_pattern,
			delete_people_on_user_delete = excluded.delete_people_on_user_delete,
			people_auto_delete = excluded.people_auto_delete,
			updated_at = excluded.updated_at
	`, i.OrganizationID, i.TenantID, i.ClientID, i.ClientSecretEnc, i.CallbackTokenEnc, i.GroupPattern, i.SyncEnabled,
		i.PeopleSyncEnabled, i.PeopleGroupPattern, i.DeletePeopleOnUserDelete, i.PeopleAutoDelete,
		i.SyncedUserCount, i.SyncedGroupCount, i.LastSyncAt, i.LastError, i.SyncInProgress, i.SyncStartedAt,
		i.CreatedAt, i.UpdatedAt)
	return err
}

func (r *IntegrationRepository) UpdateSyncStats(orgID string, userCount, groupCount int, lastSyncAt int64, lastError string) error {
	_, err := r.db.Exec(`
		UPDATE directory_integrations
		SET synced_user_count = ?, synced_group_count = ?, last_sync_at = ?, last_error = ?, updated_at = ?
		WHERE organization_id = ?
	`, userCount, groupCount, lastSyncAt, lastError, time.Now().Unix(), orgID)
	return err
}

// UpdateSyncError records a failure without touching last_sync_at; the
// timestamp only moves when a reconciliation actually ran.
func (r *IntegrationRepository) UpdateSyncError(orgID, lastError string) error {
	_, err := r.db.Exec(`
		UPDATE directory_integrations SET last_error = ?, updated_at = ?
		WHERE organization_id = ?
	`, lastError, time.Now().Unix(), orgID)
	return err
}

// AcquireSyncLock flips the per-org guard column. A previous holder whose
// lease expired (crashed run) is taken over. Returns false when another
// run currently holds the guard.
func (r *IntegrationRepository) AcquireSyncLock(orgID string, lease time.Duration) (bool, error) {
	now := time.Now().Unix()
	cutoff := now - int64(lease.Seconds())
	res, err := r.db.Exec(`
		UPDATE directory_integrations
		SET sync_in_progress = 1, sync_started_at = ?, updated_at = ?
		WHERE organization_id = ?
		  AND (sync_in_progress = 0 OR sync_started_at IS NULL OR sync_started_at < ?)
	`, now, now, orgID, cutoff)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *IntegrationRepository) ReleaseSyncLock(orgID string) error {
	_, err := r.db.Exec(`
		UPDATE directory_integrations
		SET sync_in_progress = 0, sync_started_at = NULL, updated_at = ?
		WHERE organization_id = ?
	`, time.Now().Unix(), orgID)
	return err
}
