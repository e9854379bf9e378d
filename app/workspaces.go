package app

import (
	"context"

	"github.com/fieldbase/fieldbase/domain/schema"
	"github.com/fieldbase/fieldbase/ports"
	"github.com/rs/zerolog"
)

// WorkspaceService manages workspace settings after signup.
type WorkspaceService struct {
	workspaces ports.WorkspaceStore
	clock      ports.Clock
	logger     zerolog.Logger
}

// NewWorkspaceService creates the workspace service.
func NewWorkspaceService(workspaces ports.WorkspaceStore, clock ports.Clock, logger zerolog.Logger) *WorkspaceService {
	return &WorkspaceService{
		workspaces: workspaces,
		clock:      clock,
		logger:     logger.With().Str("service", "workspaces").Logger(),
	}
}

// Get returns a workspace by ID.
func (s *WorkspaceService) Get(ctx context.Context, id string) (schema.Workspace, error) {
	return s.workspaces.Get(ctx, id)
}

// Rename changes the workspace's display name. The slug is immutable; it is
// part of every published composition URL.
func (s *WorkspaceService) Rename(ctx context.Context, id, name string) (schema.Workspace, error) {
	ws, err := s.workspaces.Get(ctx, id)
	if err != nil {
		return schema.Workspace{}, err
	}
	ws.Name = name
	ws.UpdatedAt = s.clock.Now().UTC()
	if err := s.workspaces.Update(ctx, ws); err != nil {
		return schema.Workspace{}, err
	}
	return ws, nil
}

// SetActive toggles the workspace. A deactivated workspace answers 404 on
// every composition endpoint but keeps its data.
func (s *WorkspaceService) SetActive(ctx context.Context, id string, active bool) (schema.Workspace, error) {
	ws, err := s.workspaces.Get(ctx, id)
	if err != nil {
		return schema.Workspace{}, err
	}
	ws.Active = active
	ws.UpdatedAt = s.clock.Now().UTC()
	if err := s.workspaces.Update(ctx, ws); err != nil {
		return schema.Workspace{}, err
	}

	s.logger.Info().Str("workspace", ws.Slug).Bool("active", active).Msg("workspace toggled")
	return ws, nil
}
