package repositories

import (
	"database/sql"
	"time"

	"backoffice/internal/platform/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, organization_id, email, name, status, external_id, scim_provisioned, person_id, created_at, updated_at`

func (r *UserRepository) Create(user *models.User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, organization_id, email, name, status, external_id, scim_provisioned, person_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.OrganizationID, user.Email, user.Name, user.Status, user.ExternalID, user.ScimProvisioned, user.PersonID, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	return r.scanOne(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(orgID, email string) (*models.User, error) {
	return r.scanOne(`
		SELECT `+userColumns+` FROM users
		WHERE organization_id = ? AND LOWER(email) = LOWER(?)
	`, orgID, email)
}

func (r *UserRepository) Update(user *models.User) error {
	user.UpdatedAt = time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE users SET email = ?, name = ?, status = ?, external_id = ?, scim_provisioned = ?, person_id = ?, updated_at = ?
		WHERE id = ?
	`, user.Email, user.Name, user.Status, user.ExternalID, user.ScimProvisioned, user.PersonID, user.UpdatedAt, user.ID)
	return err
}

func (r *UserRepository) LinkPerson(userID, personID string) error {
	_, err := r.db.Exec(`UPDATE users SET person_id = ?, updated_at = ? WHERE id = ?`,
		personID, time.Now().Unix(), userID)
	return err
}

func (r *UserRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	return err
}

func (r *UserRepository) ListByOrg(orgID string) ([]*models.User, error) {
	rows, err := r.db.Query(`
		SELECT `+userColumns+` FROM users
		WHERE organization_id = ? ORDER BY email
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.OrganizationID, &user.Email, &user.Name, &user.Status,
			&user.ExternalID, &user.ScimProvisioned, &user.PersonID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) scanOne(query string, args ...interface{}) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(query, args...).Scan(
		&user.ID, &user.OrganizationID, &user.Email, &user.Name, &user.Status,
		&user.ExternalID, &user.ScimProvisioned, &user.PersonID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
