package repositories

import (
	"database/sql"
	"time"

	"backoffice/internal/platform/models"
)

type PersonRepository struct {
	db *sql.DB
}

func NewPersonRepository(db *sql.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

const personColumns = `id, organization_id, email, slug, name, source, external_id, external_group_id, external_group_name,
	last_synced_at, sync_enabled, manager_id, role, team, location, phone, start_date, hire_date, leave_date,
	provider_created_at, last_sign_in_at, last_password_change_at, created_at, updated_at`

// Create inserts a person. Emails are stored lower-cased, so the unique
// index on (organization_id, email) doubles as case-insensitive duplicate
// detection. On an email conflict the existing row wins and only the sync
// provenance fields are refreshed, which makes concurrent syncs of the
// same person race safely.
func (r *PersonRepository) Create(p *models.Person) error {
	_, err := r.db.Exec(`
		INSERT INTO people (id, organization_id, email, slug, name, source, external_id, external_group_id, external_group_name,
			last_synced_at, sync_enabled, manager_id, role, team, location, phone, start_date, hire_date, leave_date,
			provider_created_at, last_sign_in_at, last_password_change_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, email) DO UPDATE SET
			source = excluded.source,
			external_id = excluded.external_id,
			external_group_id = excluded.external_group_id,
			external_group_name = excluded.external_group_name,
			last_synced_at = excluded.last_synced_at,
			sync_enabled = excluded.sync_enabled,
			updated_at = excluded.updated_at
	`, p.ID, p.OrganizationID, p.Email, p.Slug, p.Name, p.Source, p.ExternalID, p.ExternalGroupID, p.ExternalGroupName,
		p.LastSyncedAt, p.SyncEnabled, p.ManagerID, p.Role, p.Team, p.Location, p.Phone, p.StartDate, p.HireDate, p.LeaveDate,
		p.ProviderCreatedAt, p.LastSignInAt, p.LastPasswordChangeAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PersonRepository) GetByID(id string) (*models.Person, error) {
	return r.scanOne(`SELECT `+personColumns+` FROM people WHERE id = ?`, id)
}

func (r *PersonRepository) GetByEmail(orgID, email string) (*models.Person, error) {
	return r.scanOne(`
		SELECT `+personColumns+` FROM people
		WHERE organization_id = ? AND LOWER(email) = LOWER(?)
	`, orgID, email)
}

func (r *PersonRepository) GetByExternalID(orgID, externalID string) (*models.Person, error) {
	return r.scanOne(`
		SELECT `+personColumns+` FROM people
		WHERE organization_id = ? AND external_id = ?
	`, orgID, externalID)
}

// GetByEmailOrSlug backs the unique-constraint fallback: after a failed
// insert the row that won the race is located by either key and linked.
func (r *PersonRepository) GetByEmailOrSlug(orgID, email, slug string) (*models.Person, error) {
	return r.scanOne(`
		SELECT `+personColumns+` FROM people
		WHERE organization_id = ? AND (LOWER(email) = LOWER(?) OR slug = ?)
	`, orgID, email, slug)
}

func (r *PersonRepository) SlugExists(slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM people WHERE slug = ?)`, slug).Scan(&exists)
	return exists, err
}

func (r *PersonRepository) Update(p *models.Person) error {
	p.UpdatedAt = time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE people SET email = ?, name = ?, source = ?, external_id = ?, external_group_id = ?, external_group_name = ?,
			last_synced_at = ?, sync_enabled = ?, role = ?, team = ?, location = ?, phone = ?, start_date = ?, hire_date = ?, leave_date = ?,
			provider_created_at = ?, last_sign_in_at = ?, last_password_change_at = ?, updated_at = ?
		WHERE id = ?
	`, p.Email, p.Name, p.Source, p.ExternalID, p.ExternalGroupID, p.ExternalGroupName,
		p.LastSyncedAt, p.SyncEnabled, p.Role, p.Team, p.Location, p.Phone, p.StartDate, p.HireDate, p.LeaveDate,
		p.ProviderCreatedAt, p.LastSignInAt, p.LastPasswordChangeAt, p.UpdatedAt, p.ID)
	return err
}

func (r *PersonRepository) SetManager(personID string, managerID *string) error {
	_, err := r.db.Exec(`UPDATE people SET manager_id = ?, updated_at = ? WHERE id = ?`,
		managerID, time.Now().Unix(), personID)
	return err
}

func (r *PersonRepository) Delete(id string) error {
	// Reports pointing at the deleted person lose their manager link.
	if _, err := r.db.Exec(`UPDATE people SET manager_id = NULL WHERE manager_id = ?`, id); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM people WHERE id = ?`, id)
	return err
}

func (r *PersonRepository) ListByOrg(orgID string) ([]*models.Person, error) {
	rows, err := r.db.Query(`
		SELECT `+personColumns+` FROM people
		WHERE organization_id = ? ORDER BY name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var people []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (r *PersonRepository) scanOne(query string, args ...interface{}) (*models.Person, error) {
	p, err := scanPerson(r.db.QueryRow(query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func scanPerson(s interface {
	Scan(dest ...interface{}) error
}) (*models.Person, error) {
	p := &models.Person{}
	err := s.Scan(
		&p.ID, &p.OrganizationID, &p.Email, &p.Slug, &p.Name, &p.Source, &p.ExternalID,
		&p.ExternalGroupID, &p.ExternalGroupName, &p.LastSyncedAt, &p.SyncEnabled, &p.ManagerID,
		&p.Role, &p.Team, &p.Location, &p.Phone, &p.StartDate, &p.HireDate, &p.LeaveDate,
		&p.ProviderCreatedAt, &p.LastSignInAt, &p.LastPasswordChangeAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
