// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package projects

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/canonical/task-service/internal/access"
	"github.com/canonical/task-service/internal/cache"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/monitoring"
	"github.com/canonical/task-service/internal/storage"
	"github.com/canonical/task-service/internal/tracing"
	"github.com/canonical/task-service/internal/types"
	"github.com/canonical/task-service/pkg/notifications"
)

var _ ServiceInterface = (*Service)(nil)

type Service struct {
	storage   StorageInterface
	cache     cache.CacheInterface
	evaluator access.EvaluatorInterface
	notifier  notifications.NotifierInterface

	tracer  tracing.TracingInterface
	monitor monitoring.MonitorInterface
	logger  logging.LoggerInterface
}

func NewService(
	s StorageInterface,
	c cache.CacheInterface,
	evaluator access.EvaluatorInterface,
	notifier notifications.NotifierInterface,
	tracer tracing.TracingInterface,
	monitor monitoring.MonitorInterface,
	logger logging.LoggerInterface,
) *Service {
	return &Service{
		storage:   s,
		cache:     c,
		evaluator: evaluator,
		notifier:  notifier,
		tracer:    tracer,
		monitor:   monitor,
		logger:    logger,
	}
}

func (s *Service) CreateProject(ctx context.Context, userID, name, description string) (*types.Project, error) {
	ctx, span := s.tracer.Start(ctx, "projects.Service.CreateProject")
	defer span.End()

	created, err := s.storage.CreateProject(ctx, &types.Project{
		Name:        name,
		Description: description,
		OwnerID:     userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.cache.Delete(ctx, cache.UserProjectsKey(userID))
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventProjectCreated, notifications.UserRoom(userID), created))

	return created, nil
}

// ListProjects returns the caller's projects, owned and joined, serving from
// the cache when possible.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]*types.ProjectSummary, error) {
	ctx, span := s.tracer.Start(ctx, "projects.Service.ListProjects")
	defer span.End()

	key := cache.UserProjectsKey(userID)

	var cached []*types.ProjectSummary
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	projects, err := s.storage.ListProjectsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if projects == nil {
		projects = []*types.ProjectSummary{}
	}

	s.cache.SetJSON(ctx, key, projects, cache.UserProjectsTTL)

	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, projectID, userID string) (*types.Project, error) {
	ctx, span := s.tracer.Start(ctx, "projects.Service.GetProject")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	if d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleViewer, access.WithArchivedAccess()); !d.Granted {
		return nil, s.deny(userID, projectID, d)
	}

	return project, nil
}

// UpdateProject applies the fields named in paths. Renames and description
// edits need admin, touching the archived flag is reserved to the owner, who
// is also the only one allowed through on an already-archived project.
func (s *Service) UpdateProject(ctx context.Context, projectID, userID string, project *types.Project, paths []string) (*types.Project, error) {
	ctx, span := s.tracer.Start(ctx, "projects.Service.UpdateProject")
	defer span.End()

	current, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	required := access.RoleAdmin
	var opts []access.Option
	if slices.Contains(paths, "archived") {
		required = access.RoleOwner
		opts = append(opts, access.WithArchivedAccess())
	}

	if d := s.evaluator.EvaluateProject(ctx, current, membership, userID, required, opts...); !d.Granted {
		return nil, s.deny(userID, projectID, d)
	}

	project.ID = projectID
	if err := s.storage.UpdateProject(ctx, project, paths); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	updated, err := s.storage.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get updated project: %w", err)
	}

	// Project fields surface in every member's cached project list.
	s.cache.DeleteByPrefix(ctx, cache.UserProjectsPrefix())
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventProjectUpdated, notifications.ProjectRoom(projectID), updated))

	return updated, nil
}

// DeleteProject removes the project and everything under it, owner only. An
// archived project must be unarchived first.
func (s *Service) DeleteProject(ctx context.Context, projectID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "projects.Service.DeleteProject")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return err
	}

	if d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleOwner); !d.Granted {
		return s.deny(userID, projectID, d)
	}

	if err := s.storage.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.cache.DeleteByPrefix(ctx, cache.UserProjectsPrefix())
	s.cache.DeleteByPrefix(ctx, cache.ProjectTasksPrefix(projectID))
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventProjectDeleted, notifications.ProjectRoom(projectID), map[string]string{"id": projectID}))

	return nil
}

func (s *Service) ListMembers(ctx context.Context, projectID, userID string) ([]*types.ProjectMember, error) {
	ctx, span := s.tracer.Start(ctx, "projects.Service.ListMembers")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	if d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleViewer, access.WithArchivedAccess()); !d.Granted {
		return nil, s.deny(userID, projectID, d)
	}

	members, err := s.storage.ListMembersByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if members == nil {
		members = []*types.ProjectMember{}
	}

	return members, nil
}

// AddMember grants a user, looked up by email, a role on the project. Needs
// admin. The owner role cannot be granted, ownership travels with the
// project row.
func (s *Service) AddMember(ctx context.Context, projectID, userID, email, role string) (*types.ProjectMember, error) {
	ctx, span := s.tracer.Start(ctx, "projects.Service.AddMember")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	if d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleAdmin); !d.Granted {
		return nil, s.deny(userID, projectID, d)
	}

	if !access.ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("no user with email %q: %w", email, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.ID == project.OwnerID {
		return nil, fmt.Errorf("user already owns the project: %w", storage.ErrDuplicateKey)
	}

	if _, err := s.storage.AddMember(ctx, projectID, user.ID, role); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("user is already a member: %w", storage.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	member := &types.ProjectMember{UserID: user.ID, Email: user.Email, Name: user.Name, Role: role}

	s.cache.DeleteByPrefix(ctx, cache.UserProjectsPrefix())
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventMemberAdded, notifications.ProjectRoom(projectID), member))
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventMemberAdded, notifications.UserRoom(user.ID), member))

	return member, nil
}

// UpdateMemberRole changes an existing membership. Admins may manage members
// and viewers; only the owner may touch another admin.
func (s *Service) UpdateMemberRole(ctx context.Context, projectID, userID, memberID, role string) (*types.ProjectMember, error) {
	ctx, span := s.tracer.Start(ctx, "projects.Service.UpdateMemberRole")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}

	d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleAdmin)
	if !d.Granted {
		return nil, s.deny(userID, projectID, d)
	}

	if !access.ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	current, err := s.storage.GetMembership(ctx, projectID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	if access.Role(current.Role) == access.RoleAdmin && d.Role != access.RoleOwner && memberID != userID {
		s.logger.Security().AuthzFailure(userID, fmt.Sprintf("project:%s", projectID))
		return nil, fmt.Errorf("only the owner may change another admin's role: %w", access.ErrForbidden)
	}

	if err := s.storage.UpdateMemberRole(ctx, projectID, memberID, role); err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}

	user, err := s.storage.GetUserByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member user: %w", err)
	}

	member := &types.ProjectMember{UserID: user.ID, Email: user.Email, Name: user.Name, Role: role}

	s.cache.DeleteByPrefix(ctx, cache.UserProjectsPrefix())
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventMemberUpdated, notifications.ProjectRoom(projectID), member))
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventMemberUpdated, notifications.UserRoom(memberID), member))

	return member, nil
}

// RemoveMember drops a membership. Admins may remove members and viewers,
// the owner may remove anyone, and any member may remove themselves.
func (s *Service) RemoveMember(ctx context.Context, projectID, userID, memberID string) error {
	ctx, span := s.tracer.Start(ctx, "projects.Service.RemoveMember")
	defer span.End()

	project, membership, err := s.loadProjectAccess(ctx, projectID, userID)
	if err != nil {
		return err
	}

	if userID != memberID {
		d := s.evaluator.EvaluateProject(ctx, project, membership, userID, access.RoleAdmin)
		if !d.Granted {
			return s.deny(userID, projectID, d)
		}

		target, err := s.storage.GetMembership(ctx, projectID, memberID)
		if err != nil {
			return fmt.Errorf("failed to get membership: %w", err)
		}

		if access.Role(target.Role) == access.RoleAdmin && d.Role != access.RoleOwner {
			s.logger.Security().AuthzFailure(userID, fmt.Sprintf("project:%s", projectID))
			return fmt.Errorf("only the owner may remove an admin: %w", access.ErrForbidden)
		}
	}

	if err := s.storage.RemoveMember(ctx, projectID, memberID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.cache.DeleteByPrefix(ctx, cache.UserProjectsPrefix())
	payload := map[string]string{"project_id": projectID, "user_id": memberID}
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventMemberRemoved, notifications.ProjectRoom(projectID), payload))
	s.notifier.Publish(ctx, notifications.NewEvent(notifications.EventMemberRemoved, notifications.UserRoom(memberID), payload))

	return nil
}

// loadProjectAccess fetches the project and the caller's membership row, nil
// when the caller has none.
func (s *Service) loadProjectAccess(ctx context.Context, projectID, userID string) (*types.Project, *types.Membership, error) {
	project, err := s.storage.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to get project: %w", err)
	}

	membership, err := s.storage.GetMembership(ctx, projectID, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("failed to get membership: %w", err)
		}
		membership = nil
	}

	return project, membership, nil
}

// deny converts a denial into the error the handler maps to a response.
// Callers with no standing get a 404 so the project's existence does not
// leak; everyone else gets a 403 with the reason.
func (s *Service) deny(userID, projectID string, d access.AccessDecision) error {
	s.logger.Security().AuthzFailure(userID, fmt.Sprintf("project:%s", projectID))

	if d.Role == access.RoleNone {
		return fmt.Errorf("project access: %w", storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", d.Reason, access.ErrForbidden)
}
