// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package projects

import (
	"context"

	"github.com/canonical/task-service/internal/types"
)

type ServiceInterface interface {
	CreateProject(ctx context.Context, userID, name, description string) (*types.Project, error)
	ListProjects(ctx context.Context, userID string) ([]*types.ProjectSummary, error)
	GetProject(ctx context.Context, projectID, userID string) (*types.Project, error)
	UpdateProject(ctx context.Context, projectID, userID string, project *types.Project, paths []string) (*types.Project, error)
	DeleteProject(ctx context.Context, projectID, userID string) error

	ListMembers(ctx context.Context, projectID, userID string) ([]*types.ProjectMember, error)
	AddMember(ctx context.Context, projectID, userID, email, role string) (*types.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, projectID, userID, memberID, role string) (*types.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID, memberID string) error
}

// StorageInterface is the subset of the storage API this package needs.
type StorageInterface interface {
	CreateProject(ctx context.Context, p *types.Project) (*types.Project, error)
	GetProjectByID(ctx context.Context, id string) (*types.Project, error)
	ListProjectsByUserID(ctx context.Context, userID string) ([]*types.ProjectSummary, error)
	UpdateProject(ctx context.Context, p *types.Project, paths []string) error
	DeleteProject(ctx context.Context, id string) error

	AddMember(ctx context.Context, projectID, userID, role string) (string, error)
	GetMembership(ctx context.Context, projectID, userID string) (*types.Membership, error)
	ListMembersByProjectID(ctx context.Context, projectID string) ([]*types.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, projectID, userID, role string) error
	RemoveMember(ctx context.Context, projectID, userID string) error

	GetUserByID(ctx context.Context, id string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
}
