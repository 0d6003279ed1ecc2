package directory

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"backoffice/internal/pkg/validator"
	"backoffice/internal/platform/models"
)

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// slugify collapses a display name to a URL-safe slug: lower-cased,
// non-alphanumeric runs become single dashes, edges trimmed.
func slugify(name string) string {
	slug := slugCleaner.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "person"
	}
	return slug
}

// uniqueSlug resolves collisions by suffixing -2, -3, ...
func (s *Service) uniqueSlug(base string) (string, error) {
	slug := base
	for i := 2; ; i++ {
		exists, err := s.people.SlugExists(slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

type userResult struct {
	user    *models.User
	created bool
	updated bool
}

// getOrCreateUser resolves a remote user to a local application User by
// (org, email). Existing rows are only augmented with sync provenance;
// nothing is replaced wholesale.
func (s *Service) getOrCreateUser(orgID string, ru RemoteUser) (*userResult, error) {
	email := validator.NormalizeEmail(ru.Email)

	user, err := s.users.GetByEmail(orgID, email)
	if err != nil {
		return nil, err
	}

	if user != nil {
		changed := false
		if ru.DisplayName != "" && user.Name != ru.DisplayName {
			user.Name = ru.DisplayName
			changed = true
		}
		if !user.ScimProvisioned {
			user.ScimProvisioned = true
			changed = true
		}
		if user.ExternalID == "" && ru.ExternalID != "" {
			user.ExternalID = ru.ExternalID
			changed = true
		}
		if changed {
			if err := s.users.Update(user); err != nil {
				return nil, err
			}
		}
		return &userResult{user: user, updated: changed}, nil
	}

	status := models.UserStatusActive
	if ru.AccountEnabled != nil && !*ru.AccountEnabled {
		status = models.UserStatusInvited
	}

	now := time.Now().Unix()
	user = &models.User{
		ID:              "usr_" + uuid.NewString(),
		OrganizationID:  orgID,
		Email:           email,
		Name:            ru.DisplayName,
		Status:          status,
		ExternalID:      ru.ExternalID,
		ScimProvisioned: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	return &userResult{user: user, created: true}, nil
}

type personResult struct {
	person  *models.Person
	created bool
	updated bool
}

// getOrCreatePerson resolves the Person record for a remote user.
// Resolution is three-tier: the user's linked person, then a
// case-insensitive email match within the org, then a fresh insert with
// a lookup-and-link fallback on unique-constraint conflicts.
func (s *Service) getOrCreatePerson(orgID string, user *models.User, ru RemoteUser, group *models.ScimGroup) (*personResult, error) {
	email := validator.NormalizeEmail(ru.Email)
	now := time.Now().Unix()

	if user != nil && user.PersonID != nil {
		person, err := s.people.GetByID(*user.PersonID)
		if err != nil {
			return nil, err
		}
		if person != nil {
			updated := applyRemoteFields(person, ru)
			refreshProvenance(person, ru, group, now)
			if err := s.people.Update(person); err != nil {
				return nil, err
			}
			return &personResult{person: person, updated: updated}, nil
		}
		// Dangling reference; fall through and re-resolve.
	}

	person, err := s.people.GetByEmail(orgID, email)
	if err != nil {
		return nil, err
	}
	if person != nil {
		updated := applyRemoteFields(person, ru)
		refreshProvenance(person, ru, group, now)
		if err := s.people.Update(person); err != nil {
			return nil, err
		}
		if user != nil {
			if err := s.linkUserToPerson(user, person.ID); err != nil {
				return nil, err
			}
		}
		return &personResult{person: person, updated: updated}, nil
	}

	slug, err := s.uniqueSlug(slugify(ru.DisplayName))
	if err != nil {
		return nil, err
	}

	startDate := ru.HireDate
	if startDate == "" {
		// Only at creation: an absent or unusable hire date defaults
		// to today so every person has a start date.
		startDate = time.Now().Format("2006-01-02")
	}

	person = &models.Person{
		ID:                   "per_" + uuid.NewString(),
		OrganizationID:       orgID,
		Email:                email,
		Slug:                 slug,
		Name:                 ru.DisplayName,
		Source:               models.SourceSync,
		ExternalID:           ru.ExternalID,
		SyncEnabled:          true,
		LastSyncedAt:         &now,
		Role:                 ru.JobTitle,
		Team:                 ru.Department,
		Location:             ru.OfficeLocation,
		Phone:                ru.MobilePhone,
		StartDate:            startDate,
		HireDate:             ru.HireDate,
		LeaveDate:            ru.LeaveDate,
		ProviderCreatedAt:    ru.CreatedAt,
		LastSignInAt:         ru.LastSignInAt,
		LastPasswordChangeAt: ru.LastPasswordChangeAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if group != nil {
		person.ExternalGroupID = group.ExternalID
		person.ExternalGroupName = group.DisplayName
	}

	if err := s.people.Create(person); err != nil {
		// A concurrent writer may have won on the slug index. The
		// desired end state is the same either way: locate the row
		// that exists and link to it.
		existing, lookupErr := s.people.GetByEmailOrSlug(orgID, email, slug)
		if lookupErr != nil || existing == nil {
			return nil, err
		}
		log.Warn().Str("email", email).Msg("person insert conflicted, linking existing row")
		person = existing
	} else if winner, err := s.people.GetByEmail(orgID, email); err == nil && winner != nil {
		// The upsert may have resolved to a pre-existing row with a
		// different id; adopt whatever the database kept.
		person = winner
	}

	if user != nil {
		if err := s.linkUserToPerson(user, person.ID); err != nil {
			return nil, err
		}
	}
	return &personResult{person: person, created: true}, nil
}

func (s *Service) linkUserToPerson(user *models.User, personID string) error {
	if user.PersonID != nil && *user.PersonID == personID {
		return nil
	}
	if err := s.users.LinkPerson(user.ID, personID); err != nil {
		return err
	}
	user.PersonID = &personID
	return nil
}

// applyRemoteFields patches mutable profile fields, writing only values
// that actually differ. Reports whether anything changed.
func applyRemoteFields(p *models.Person, ru RemoteUser) bool {
	changed := false

	setString := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	setString(&p.Name, ru.DisplayName)
	setString(&p.Role, ru.JobTitle)
	setString(&p.Team, ru.Department)
	setString(&p.Location, ru.OfficeLocation)
	setString(&p.Phone, ru.MobilePhone)
	setString(&p.HireDate, ru.HireDate)
	setString(&p.LeaveDate, ru.LeaveDate)

	setTime := func(dst **int64, v *int64) {
		if v != nil && (*dst == nil || **dst != *v) {
			*dst = v
			changed = true
		}
	}
	setTime(&p.ProviderCreatedAt, ru.CreatedAt)
	setTime(&p.LastSignInAt, ru.LastSignInAt)
	setTime(&p.LastPasswordChangeAt, ru.LastPasswordChangeAt)

	return changed
}

// refreshProvenance is applied on every touch regardless of field
// changes; it records which sync run and group last saw this person.
func refreshProvenance(p *models.Person, ru RemoteUser, group *models.ScimGroup, now int64) {
	p.Source = models.SourceSync
	p.SyncEnabled = true
	p.LastSyncedAt = &now
	if ru.ExternalID != "" {
		p.ExternalID = ru.ExternalID
	}
	if group != nil {
		p.ExternalGroupID = group.ExternalID
		p.ExternalGroupName = group.DisplayName
	}
}

// getOrCreateGroup projects a remote group into the local scim_groups
// table, refreshing the display name and role mapping on every run.
func (s *Service) getOrCreateGroup(orgID string, rg RemoteGroup, mappedRoleID *string) (*models.ScimGroup, error) {
	group, err := s.groups.GetByExternalID(orgID, rg.ExternalID)
	if err != nil {
		return nil, err
	}
	if group != nil {
		group.DisplayName = rg.DisplayName
		group.MappedRoleID = mappedRoleID
		return group, nil
	}

	now := time.Now().Unix()
	group = &models.ScimGroup{
		ID:             "grp_" + uuid.NewString(),
		OrganizationID: orgID,
		ExternalID:     rg.ExternalID,
		DisplayName:    rg.DisplayName,
		MappedRoleID:   mappedRoleID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.groups.Create(group); err != nil {
		return nil, err
	}
	return group, nil
}
