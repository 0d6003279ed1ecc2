package directory

import (
	"backoffice/internal/platform/models"
)

// syncMembership records that a user currently belongs to a group and,
// when the group maps to a role, grants that role with sync provenance.
// Both writes are idempotent; a pre-existing manual grant of the same
// role is upgraded to sync provenance in place rather than duplicated.
func (s *Service) syncMembership(userID, groupID string, roleID *string) (membershipAdded, roleAssigned bool, err error) {
	membershipAdded, err = s.groups.AddMembership(userID, groupID)
	if err != nil {
		return false, false, err
	}

	if roleID == nil {
		return membershipAdded, false, nil
	}

	grant, err := s.grants.Get(userID, *roleID)
	if err != nil {
		return membershipAdded, false, err
	}

	if grant == nil {
		if err := s.grants.Insert(userID, *roleID, models.SourceSync, &groupID); err != nil {
			return membershipAdded, false, err
		}
		return membershipAdded, true, nil
	}

	if grant.Source == models.SourceManual {
		// Provenance changes; the permission itself is unaffected.
		if err := s.grants.UpgradeToSync(userID, *roleID, &groupID); err != nil {
			return membershipAdded, false, err
		}
	}
	return membershipAdded, false, nil
}

// cleanupStaleMemberships removes memberships for users the provider no
// longer reports in this group, along with the sync-sourced role grants
// this group originated. Manual grants survive even when the user left.
func (s *Service) cleanupStaleMemberships(groupID string, currentMemberIDs []string) (removed int, rolesRemoved int, err error) {
	existing, err := s.groups.ListMemberUserIDs(groupID)
	if err != nil {
		return 0, 0, err
	}

	current := make(map[string]bool, len(currentMemberIDs))
	for _, id := range currentMemberIDs {
		current[id] = true
	}

	for _, userID := range existing {
		if current[userID] {
			continue
		}
		if err := s.groups.RemoveMembership(userID, groupID); err != nil {
			return removed, rolesRemoved, err
		}
		removed++

		n, err := s.grants.DeleteSyncByGroupForUser(userID, groupID)
		if err != nil {
			return removed, rolesRemoved, err
		}
		rolesRemoved += n
	}

	return removed, rolesRemoved, nil
}
