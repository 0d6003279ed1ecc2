package repositories

import (
	"database/sql"

	"backoffice/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(org *models.Organization) error {
	_, err := r.db.Exec(`
		INSERT INTO organizations (id, slug, name, domain, default_role_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, org.ID, org.Slug, org.Name, org.Domain, org.DefaultRoleID, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) GetByID(id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, slug, name, domain, default_role_id, created_at, updated_at, deleted_at
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.Domain, &org.DefaultRoleID, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) GetBySlug(slug string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, slug, name, domain, default_role_id, created_at, updated_at, deleted_at
		FROM organizations WHERE slug = ?
	`, slug).Scan(&org.ID, &org.Slug, &org.Name, &org.Domain, &org.DefaultRoleID, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(role *models.Role) error {
	_, err := r.db.Exec(`
		INSERT INTO roles (id, organization_id, slug, name, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, role.ID, role.OrganizationID, role.Slug, role.Name, role.IsDefault, role.CreatedAt, role.UpdatedAt)
	return err
}

func (r *RoleRepository) GetByID(id string) (*models.Role, error) {
	return r.scanOne(`
		SELECT id, organization_id, slug, name, is_default, created_at, updated_at
		FROM roles WHERE id = ?
	`, id)
}

func (r *RoleRepository) GetBySlug(orgID, slug string) (*models.Role, error) {
	return r.scanOne(`
		SELECT id, organization_id, slug, name, is_default, created_at, updated_at
		FROM roles WHERE organization_id = ? AND slug = ?
	`, orgID, slug)
}

func (r *RoleRepository) GetDefault(orgID string) (*models.Role, error) {
	return r.scanOne(`
		SELECT id, organization_id, slug, name, is_default, created_at, updated_at
		FROM roles WHERE organization_id = ? AND is_default = 1
	`, orgID)
}

func (r *RoleRepository) scanOne(query string, args ...interface{}) (*models.Role, error) {
	role := &models.Role{}
	err := r.db.QueryRow(query, args...).Scan(
		&role.ID, &role.OrganizationID, &role.Slug, &role.Name, &role.IsDefault, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return role, nil
}
