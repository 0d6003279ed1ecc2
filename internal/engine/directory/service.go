package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"backoffice/internal/platform/config"
	"backoffice/internal/platform/models"
	"backoffice/internal/platform/repositories"
	"backoffice/internal/platform/secrets"
)

type SyncStats struct {
	GroupsProcessed    int      `json:"groups_processed"`
	UsersCreated       int      `json:"users_created"`
	UsersUpdated       int      `json:"users_updated"`
	PeopleCreated      int      `json:"people_created"`
	PeopleUpdated      int      `json:"people_updated"`
	MembershipsAdded   int      `json:"memberships_added"`
	MembershipsRemoved int      `json:"memberships_removed"`
	RolesAssigned      int      `json:"roles_assigned"`
	RolesRemoved       int      `json:"roles_removed"`
	GroupsRemoved      int      `json:"groups_removed"`
	UsersRemoved       int      `json:"users_removed"`
	PeopleRemoved      int      `json:"people_removed"`
	ManagersLinked     int      `json:"managers_linked"`
	Errors             []string `json:"errors,omitempty"`
}

type SyncResult struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Stats   SyncStats `json:"stats"`
}

func failure(format string, args ...interface{}) *SyncResult {
	return &SyncResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Service orchestrates directory reconciliation runs. Each run is a
// single sequential pass; member-enrichment inside the Graph client is
// the only internal concurrency.
type Service struct {
	orgs         *repositories.OrganizationRepository
	users        *repositories.UserRepository
	people       *repositories.PersonRepository
	groups       *repositories.ScimGroupRepository
	roles        *repositories.RoleRepository
	grants       *repositories.RoleGrantRepository
	integrations *repositories.IntegrationRepository
	codec        *secrets.Codec
	cfg          config.DirectoryConfig

	// Per-org token caches so tenants never share a slot, and per-org
	// run locks backing the database guard column.
	caches sync.Map
	locks  sync.Map
}

func NewService(
	orgs *repositories.OrganizationRepository,
	users *repositories.UserRepository,
	people *repositories.PersonRepository,
	groups *repositories.ScimGroupRepository,
	roles *repositories.RoleRepository,
	grants *repositories.RoleGrantRepository,
	integrations *repositories.IntegrationRepository,
	codec *secrets.Codec,
	cfg config.DirectoryConfig,
) *Service {
	return &Service{
		orgs:         orgs,
		users:        users,
		people:       people,
		groups:       groups,
		roles:        roles,
		grants:       grants,
		integrations: integrations,
		codec:        codec,
		cfg:          cfg,
	}
}

func (s *Service) clientFor(integ *models.DirectoryIntegration) *GraphClient {
	cacheAny, _ := s.caches.LoadOrStore(integ.OrganizationID, NewMemoryTokenCache())
	tokenURL := s.cfg.TokenURL
	if strings.Contains(tokenURL, "%s") {
		tokenURL = fmt.Sprintf(tokenURL, integ.TenantID)
	}
	return NewGraphClient(
		tokenURL,
		s.cfg.GraphURL,
		integ.ClientID,
		s.codec.Decrypt(integ.ClientSecretEnc),
		s.cfg.GroupPageSize,
		cacheAny.(TokenCache),
		s.cfg.HTTPTimeout,
	)
}

func (s *Service) orgLock(orgID string) *sync.Mutex {
	muAny, _ := s.locks.LoadOrStore(orgID, &sync.Mutex{})
	return muAny.(*sync.Mutex)
}

// acquireRun takes both the in-process lock and the database guard
// column. Two concurrent runs for one org must never interleave writes;
// the guard's lease lets a later run take over after a crash.
func (s *Service) acquireRun(orgID string) (release func(), ok bool, err error) {
	mu := s.orgLock(orgID)
	if !mu.TryLock() {
		return nil, false, nil
	}

	got, err := s.integrations.AcquireSyncLock(orgID, s.cfg.SyncLease)
	if err != nil || !got {
		mu.Unlock()
		return nil, false, err
	}

	return func() {
		if err := s.integrations.ReleaseSyncLock(orgID); err != nil {
			log.Warn().Err(err).Str("org_id", orgID).Msg("failed to release sync guard")
		}
		mu.Unlock()
	}, true, nil
}

// FullSync reconciles Users, Roles and (unless the People module manages
// its own directory link) linked People against the provider. No single
// bad group or member aborts the run; failures accumulate in the stats.
func (s *Service) FullSync(ctx context.Context, orgID string) *SyncResult {
	integ, err := s.integrations.GetByOrg(orgID)
	if err != nil {
		return failure("failed to load directory settings: %v", err)
	}
	if integ == nil || integ.TenantID == "" || integ.ClientID == "" || integ.ClientSecretEnc == "" {
		return failure("directory integration is not configured")
	}
	if !integ.SyncEnabled {
		return failure("directory sync is disabled for this organization")
	}

	release, ok, err := s.acquireRun(orgID)
	if err != nil {
		return failure("failed to acquire sync lock: %v", err)
	}
	if !ok {
		return failure("a sync is already in progress for this organization")
	}
	defer release()

	client := s.clientFor(integ)
	if _, err := client.GetAccessToken(ctx); err != nil {
		msg := fmt.Sprintf("authentication failed: %v", err)
		s.integrations.UpdateSyncError(orgID, msg)
		return failure("%s", msg)
	}

	defaultRoleID := s.defaultRoleID(orgID)

	remoteGroups, err := client.FetchGroups(ctx, integ.GroupPattern)
	if err != nil {
		msg := fmt.Sprintf("failed to list groups: %v", err)
		s.integrations.UpdateSyncError(orgID, msg)
		return failure("%s", msg)
	}

	stats := SyncStats{}
	syncLinkedPeople := !integ.PeopleSyncEnabled
	var managerRefs []managerRef
	validExternalIDs := make([]string, 0, len(remoteGroups))
	syncedUsers := make(map[string]bool)

	for _, rg := range remoteGroups {
		validExternalIDs = append(validExternalIDs, rg.ExternalID)

		if err := s.syncGroup(ctx, client, integ, rg, defaultRoleID, syncLinkedPeople, &stats, &managerRefs, syncedUsers); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("group %q: %v", rg.DisplayName, err))
			continue
		}
		stats.GroupsProcessed++
	}

	cleanup, err := s.cleanupStaleGroups(orgID, validExternalIDs, integ.DeletePeopleOnUserDelete)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("stale group cleanup: %v", err))
	}
	stats.GroupsRemoved += cleanup.groupsRemoved
	stats.UsersRemoved += cleanup.usersRemoved
	stats.PeopleRemoved += cleanup.peopleRemoved
	stats.RolesRemoved += cleanup.rolesRemoved

	stats.ManagersLinked += s.resolveManagers(orgID, managerRefs)

	if integ.PeopleSyncEnabled {
		peopleResult := s.peopleSync(ctx, client, integ)
		mergePeopleStats(&stats, &peopleResult.Stats)
	}

	now := time.Now().Unix()
	lastError := strings.Join(stats.Errors, "; ")
	if err := s.integrations.UpdateSyncStats(orgID, len(syncedUsers), stats.GroupsProcessed, now, lastError); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("failed to persist sync counters: %v", err))
	}

	result := &SyncResult{
		Success: len(stats.Errors) == 0,
		Stats:   stats,
	}
	result.Message = summarize(&stats)

	log.Info().Str("org_id", orgID).Bool("success", result.Success).
		Int("groups", stats.GroupsProcessed).Int("users_created", stats.UsersCreated).
		Int("errors", len(stats.Errors)).Msg("directory sync finished")

	return result
}

func (s *Service) syncGroup(
	ctx context.Context,
	client *GraphClient,
	integ *models.DirectoryIntegration,
	rg RemoteGroup,
	defaultRoleID *string,
	syncLinkedPeople bool,
	stats *SyncStats,
	managerRefs *[]managerRef,
	syncedUsers map[string]bool,
) error {
	orgID := integ.OrganizationID

	mappedRoleID := defaultRoleID
	if slug := ExtractRoleSlug(rg.DisplayName, integ.GroupPattern); slug != "" {
		role, err := s.roles.GetBySlug(orgID, slug)
		if err != nil {
			return err
		}
		if role != nil {
			mappedRoleID = &role.ID
		}
	}

	group, err := s.getOrCreateGroup(orgID, rg, mappedRoleID)
	if err != nil {
		return err
	}

	members, err := client.FetchGroupMembers(ctx, rg.ExternalID)
	if err != nil {
		return err
	}

	currentMemberIDs := make([]string, 0, len(members))
	for _, member := range members {
		userRes, err := s.getOrCreateUser(orgID, member)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("member %q in group %q: %v", member.Email, rg.DisplayName, err))
			continue
		}
		user := userRes.user
		if userRes.created {
			stats.UsersCreated++
		} else if userRes.updated {
			stats.UsersUpdated++
		}
		syncedUsers[user.ID] = true
		currentMemberIDs = append(currentMemberIDs, user.ID)

		if syncLinkedPeople {
			personRes, err := s.getOrCreatePerson(orgID, user, member, group)
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("person %q in group %q: %v", member.Email, rg.DisplayName, err))
			} else {
				if personRes.created {
					stats.PeopleCreated++
				} else if personRes.updated {
					stats.PeopleUpdated++
				}
				if member.Manager != nil {
					*managerRefs = append(*managerRefs, managerRef{personID: personRes.person.ID, manager: member.Manager})
				}
			}
		}

		membershipAdded, roleAssigned, err := s.syncMembership(user.ID, group.ID, group.MappedRoleID)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("membership for %q in group %q: %v", member.Email, rg.DisplayName, err))
			continue
		}
		if membershipAdded {
			stats.MembershipsAdded++
		}
		if roleAssigned {
			stats.RolesAssigned++
		}
	}

	removed, rolesRemoved, err := s.cleanupStaleMemberships(group.ID, currentMemberIDs)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("membership cleanup for group %q: %v", rg.DisplayName, err))
	}
	stats.MembershipsRemoved += removed
	stats.RolesRemoved += rolesRemoved

	return s.groups.UpdateSyncInfo(group.ID, rg.DisplayName, group.MappedRoleID, len(currentMemberIDs), time.Now().Unix())
}

// PeopleSync reconciles Person records alone, used when the People
// module manages its own directory link independently of Users.
func (s *Service) PeopleSync(ctx context.Context, orgID string) *SyncResult {
	integ, err := s.integrations.GetByOrg(orgID)
	if err != nil {
		return failure("failed to load directory settings: %v", err)
	}
	if integ == nil || integ.TenantID == "" || integ.ClientID == "" || integ.ClientSecretEnc == "" {
		return failure("directory integration is not configured")
	}
	if !integ.PeopleSyncEnabled {
		return failure("independent people sync is not enabled for this organization")
	}

	release, ok, err := s.acquireRun(orgID)
	if err != nil {
		return failure("failed to acquire sync lock: %v", err)
	}
	if !ok {
		return failure("a sync is already in progress for this organization")
	}
	defer release()

	client := s.clientFor(integ)
	if _, err := client.GetAccessToken(ctx); err != nil {
		msg := fmt.Sprintf("authentication failed: %v", err)
		s.integrations.UpdateSyncError(orgID, msg)
		return failure("%s", msg)
	}

	return s.peopleSync(ctx, client, integ)
}

// peopleSync runs the narrower group->member->person pipeline with no
// membership or role logic. Auto-deletion on removal is accepted as
// configuration but deliberately not honored here; the full cleanup
// path is the only code trusted to delete people.
func (s *Service) peopleSync(ctx context.Context, client *GraphClient, integ *models.DirectoryIntegration) *SyncResult {
	orgID := integ.OrganizationID

	pattern := integ.PeopleGroupPattern
	if pattern == "" {
		pattern = integ.GroupPattern
	}

	if integ.PeopleAutoDelete {
		log.Warn().Str("org_id", orgID).
			Msg("people auto-delete is configured but not applied during independent people sync")
	}

	remoteGroups, err := client.FetchGroups(ctx, pattern)
	if err != nil {
		return failure("failed to list people groups: %v", err)
	}

	stats := SyncStats{}
	var managerRefs []managerRef

	for _, rg := range remoteGroups {
		members, err := client.FetchGroupMembers(ctx, rg.ExternalID)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("group %q: %v", rg.DisplayName, err))
			continue
		}
		stats.GroupsProcessed++

		groupInfo := &models.ScimGroup{ExternalID: rg.ExternalID, DisplayName: rg.DisplayName}
		for _, member := range members {
			personRes, err := s.getOrCreatePerson(orgID, nil, member, groupInfo)
			if err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("person %q in group %q: %v", member.Email, rg.DisplayName, err))
				continue
			}
			if personRes.created {
				stats.PeopleCreated++
			} else if personRes.updated {
				stats.PeopleUpdated++
			}
			if member.Manager != nil {
				managerRefs = append(managerRefs, managerRef{personID: personRes.person.ID, manager: member.Manager})
			}
		}
	}

	stats.ManagersLinked += s.resolveManagers(orgID, managerRefs)

	result := &SyncResult{
		Success: len(stats.Errors) == 0,
		Stats:   stats,
	}
	result.Message = summarize(&stats)
	return result
}

func (s *Service) defaultRoleID(orgID string) *string {
	org, err := s.orgs.GetByID(orgID)
	if err == nil && org != nil && org.DefaultRoleID != "" {
		id := org.DefaultRoleID
		return &id
	}
	role, err := s.roles.GetDefault(orgID)
	if err == nil && role != nil {
		return &role.ID
	}
	return nil
}

func mergePeopleStats(dst *SyncStats, src *SyncStats) {
	dst.PeopleCreated += src.PeopleCreated
	dst.PeopleUpdated += src.PeopleUpdated
	dst.ManagersLinked += src.ManagersLinked
	dst.Errors = append(dst.Errors, src.Errors...)
}

func summarize(stats *SyncStats) string {
	parts := []string{
		fmt.Sprintf("%d groups processed", stats.GroupsProcessed),
		fmt.Sprintf("%d users created, %d updated, %d removed", stats.UsersCreated, stats.UsersUpdated, stats.UsersRemoved),
		fmt.Sprintf("%d people created, %d updated, %d removed", stats.PeopleCreated, stats.PeopleUpdated, stats.PeopleRemoved),
		fmt.Sprintf("%d memberships added, %d removed", stats.MembershipsAdded, stats.MembershipsRemoved),
	}
	if len(stats.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("%d errors", len(stats.Errors)))
	}
	return strings.Join(parts, "; ")
}
