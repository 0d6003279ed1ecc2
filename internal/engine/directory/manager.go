package directory

import (
	"github.com/rs/zerolog/log"
)

// managerRef defers a manager link until every person in the run has
// been created, so a manager appearing later in iteration order is
// still resolvable.
type managerRef struct {
	personID string
	manager  *RemoteManager
}

// resolveManagers is the second pass over all persons touched in the
// run. External id match is cheap and authoritative; email is the
// fallback. A manager pointing at the person themselves is an upstream
// data error and leaves the link unset.
func (s *Service) resolveManagers(orgID string, refs []managerRef) (linked int) {
	for _, ref := range refs {
		if ref.manager == nil {
			continue
		}

		managerID := s.resolveManagerID(orgID, ref.manager)
		if managerID == "" {
			log.Debug().Str("person_id", ref.personID).Str("manager", ref.manager.DisplayName).
				Msg("manager not found locally")
			continue
		}
		if managerID == ref.personID {
			log.Warn().Str("person_id", ref.personID).Msg("skipping self-referential manager")
			continue
		}

		if err := s.people.SetManager(ref.personID, &managerID); err != nil {
			log.Warn().Err(err).Str("person_id", ref.personID).Msg("failed to set manager")
			continue
		}
		linked++
	}
	return linked
}

func (s *Service) resolveManagerID(orgID string, m *RemoteManager) string {
	if m.ExternalID != "" {
		person, err := s.people.GetByExternalID(orgID, m.ExternalID)
		if err == nil && person != nil {
			return person.ID
		}
	}
	if m.Email != "" {
		person, err := s.people.GetByEmail(orgID, m.Email)
		if err == nil && person != nil {
			return person.ID
		}
	}
	return ""
}
