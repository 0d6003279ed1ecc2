package repositories

import (
	"database/sql"
	"strings"
	"time"

	"backoffice/internal/platform/models"
)

type ScimGroupRepository struct {
	db *sql.DB
}

func NewScimGroupRepository(db *sql.DB) *ScimGroupRepository {
	return &ScimGroupRepository{db: db}
}

const groupColumns = `id, organization_id, external_id, display_name, mapped_role_id, member_count, last_sync_at, created_at, updated_at`

func (r *ScimGroupRepository) Create(g *models.ScimGroup) error {
	_, err := r.db.Exec(`
		INSERT INTO scim_groups (id, organization_id, external_id, display_name, mapped_role_id, member_count, last_sync_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.OrganizationID, g.ExternalID, g.DisplayName, g.MappedRoleID, g.MemberCount, g.LastSyncAt, g.CreatedAt, g.UpdatedAt)
	return err
}

func (r *ScimGroupRepository) GetByExternalID(orgID, externalID string) (*models.ScimGroup, error) {
	return r.scanOne(`
		SELECT `+groupColumns+` FROM scim_groups
		WHERE organization_id = ? AND external_id = ?
	`, orgID, externalID)
}

func (r *ScimGroupRepository) UpdateSyncInfo(id, displayName string, mappedRoleID *string, memberCount int, lastSyncAt int64) error {
	_, err := r.db.Exec(`
		UPDATE scim_groups SET display_name = ?, mapped_role_id = ?, member_count = ?, last_sync_at = ?, updated_at = ?
		WHERE id = ?
	`, displayName, mappedRoleID, memberCount, lastSyncAt, time.Now().Unix(), id)
	return err
}

// ListStale returns the org's groups whose external id is not in the
// current run's valid set.
func (r *ScimGroupRepository) ListStale(orgID string, validExternalIDs []string) ([]*models.ScimGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM scim_groups WHERE organization_id = ?`
	args := []interface{}{orgID}

	if len(validExternalIDs) > 0 {
		placeholders := strings.Repeat("?,", len(validExternalIDs))
		query += ` AND external_id NOT IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, id := range validExternalIDs {
			args = append(args, id)
		}
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.ScimGroup
	for rows.Next() {
		g := &models.ScimGroup{}
		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.ExternalID, &g.DisplayName, &g.MappedRoleID,
			&g.MemberCount, &g.LastSyncAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *ScimGroupRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM scim_groups WHERE id = ?`, id)
	return err
}

func (r *ScimGroupRepository) AddMembership(userID, groupID string) (bool, error) {
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO scim_memberships (user_id, group_id, created_at)
		VALUES (?, ?, ?)
	`, userID, groupID, time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ScimGroupRepository) ListMemberUserIDs(groupID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT user_id FROM scim_memberships WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ScimGroupRepository) RemoveMembership(userID, groupID string) error {
	_, err := r.db.Exec(`DELETE FROM scim_memberships WHERE user_id = ? AND group_id = ?`, userID, groupID)
	return err
}

func (r *ScimGroupRepository) RemoveAllMemberships(groupID string) error {
	_, err := r.db.Exec(`DELETE FROM scim_memberships WHERE group_id = ?`, groupID)
	return err
}

// CountMembershipsForUser reports how many groups still claim the user
// org-wide. Zero means the user is orphaned and a cleanup candidate.
func (r *ScimGroupRepository) CountMembershipsForUser(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM scim_memberships WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

func (r *ScimGroupRepository) scanOne(query string, args ...interface{}) (*models.ScimGroup, error) {
	g := &models.ScimGroup{}
	err := r.db.QueryRow(query, args...).Scan(
		&g.ID, &g.OrganizationID, &g.ExternalID, &g.DisplayName, &g.MappedRoleID,
		&g.MemberCount, &g.LastSyncAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}
