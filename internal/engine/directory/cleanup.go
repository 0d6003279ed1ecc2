package directory

import (
	"github.com/rs/zerolog/log"

	"backoffice/internal/platform/models"
)

type cleanupStats struct {
	groupsRemoved int
	usersRemoved  int
	peopleRemoved int
	rolesRemoved  int
}

// cleanupStaleGroups converges local state after a pattern change: any
// locally-known group absent from validExternalIDs is detached and
// removed, and members left without any group are deleted when sync
// provisioned them in the first place. Manually created records are
// never auto-deleted; linked Person deletion is additionally gated by
// the org's deletePeopleOnUserDelete flag.
func (s *Service) cleanupStaleGroups(orgID string, validExternalIDs []string, deletePeople bool) (cleanupStats, error) {
	var stats cleanupStats

	stale, err := s.groups.ListStale(orgID, validExternalIDs)
	if err != nil {
		return stats, err
	}

	for _, group := range stale {
		memberIDs, err := s.groups.ListMemberUserIDs(group.ID)
		if err != nil {
			return stats, err
		}

		if err := s.groups.RemoveAllMemberships(group.ID); err != nil {
			return stats, err
		}

		n, err := s.grants.DeleteSyncByGroup(group.ID)
		if err != nil {
			return stats, err
		}
		stats.rolesRemoved += n

		for _, userID := range memberIDs {
			removedUsers, removedPeople, err := s.removeIfOrphaned(userID, deletePeople)
			if err != nil {
				return stats, err
			}
			stats.usersRemoved += removedUsers
			stats.peopleRemoved += removedPeople
		}

		if err := s.groups.Delete(group.ID); err != nil {
			return stats, err
		}
		stats.groupsRemoved++

		log.Info().Str("group", group.DisplayName).Str("external_id", group.ExternalID).
			Msg("removed group no longer matching sync pattern")
	}

	return stats, nil
}

// removeIfOrphaned deletes a user who now belongs to zero groups
// org-wide, provided sync provisioned them.
func (s *Service) removeIfOrphaned(userID string, deletePeople bool) (usersRemoved, peopleRemoved int, err error) {
	count, err := s.groups.CountMembershipsForUser(userID)
	if err != nil {
		return 0, 0, err
	}
	if count > 0 {
		return 0, 0, nil
	}

	user, err := s.users.GetByID(userID)
	if err != nil || user == nil {
		return 0, 0, err
	}
	if !user.ScimProvisioned {
		return 0, 0, nil
	}

	if err := s.grants.DeleteAllForUser(userID); err != nil {
		return 0, 0, err
	}
	if err := s.users.Delete(userID); err != nil {
		return 0, 0, err
	}
	usersRemoved = 1

	if deletePeople && user.PersonID != nil {
		person, err := s.people.GetByID(*user.PersonID)
		if err != nil {
			return usersRemoved, 0, err
		}
		if person != nil && person.Source == models.SourceSync {
			if err := s.people.Delete(person.ID); err != nil {
				return usersRemoved, 0, err
			}
			peopleRemoved = 1
		}
	}

	return usersRemoved, peopleRemoved, nil
}
