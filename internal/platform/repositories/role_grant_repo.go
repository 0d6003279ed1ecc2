package repositories

import (
	"database/sql"
	"time"

	"backoffice/internal/platform/models"
)

type RoleGrantRepository struct {
	db *sql.DB
}

func NewRoleGrantRepository(db *sql.DB) *RoleGrantRepository {
	return &RoleGrantRepository{db: db}
}

func (r *RoleGrantRepository) Get(userID, roleID string) (*models.RoleGrant, error) {
	g := &models.RoleGrant{}
	err := r.db.QueryRow(`
		SELECT user_id, role_id, source, group_id, created_at, updated_at
		FROM role_grants WHERE user_id = ? AND role_id = ?
	`, userID, roleID).Scan(&g.UserID, &g.RoleID, &g.Source, &g.GroupID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

func (r *RoleGrantRepository) Insert(userID, roleID, source string, groupID *string) error {
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO role_grants (user_id, role_id, source, group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, roleID, source, groupID, now, now)
	return err
}

// UpgradeToSync rewrites a manual grant's provenance once the same role is
// also granted by a matching group. The permission itself is unchanged.
func (r *RoleGrantRepository) UpgradeToSync(userID, roleID string, groupID *string) error {
	_, err := r.db.Exec(`
		UPDATE role_grants SET source = ?, group_id = ?, updated_at = ?
		WHERE user_id = ? AND role_id = ?
	`, models.SourceSync, groupID, time.Now().Unix(), userID, roleID)
	return err
}

// DeleteSyncByGroupForUser removes only sync-sourced grants whose
// provenance points at the given group. Manual grants survive.
func (r *RoleGrantRepository) DeleteSyncByGroupForUser(userID, groupID string) (int, error) {
	res, err := r.db.Exec(`
		DELETE FROM role_grants WHERE user_id = ? AND group_id = ? AND source = ?
	`, userID, groupID, models.SourceSync)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *RoleGrantRepository) DeleteSyncByGroup(groupID string) (int, error) {
	res, err := r.db.Exec(`
		DELETE FROM role_grants WHERE group_id = ? AND source = ?
	`, groupID, models.SourceSync)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *RoleGrantRepository) DeleteAllForUser(userID string) error {
	_, err := r.db.Exec(`DELETE FROM role_grants WHERE user_id = ?`, userID)
	return err
}

func (r *RoleGrantRepository) ListByUser(userID string) ([]*models.RoleGrant, error) {
	rows, err := r.db.Query(`
		SELECT user_id, role_id, source, group_id, created_at, updated_at
		FROM role_grants WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []*models.RoleGrant
	for rows.Next() {
		g := &models.RoleGrant{}
		if err := rows.Scan(&g.UserID, &g.RoleID, &g.Source, &g.GroupID, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
