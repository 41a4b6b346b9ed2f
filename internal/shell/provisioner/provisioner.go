// Package provisioner ensures the target workspace exists and grants the
// deploying principal a role in it.
// This is part of the Imperative Shell - it calls the platform API.
package provisioner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/shell/fabric"
)

// WorkspaceAPI is the part of the platform API the provisioner needs.
// *fabric.Client implements it.
type WorkspaceAPI interface {
	GetWorkspace(ctx context.Context, id string) (*fabric.Workspace, error)
	FindWorkspaceByName(ctx context.Context, name string) (*fabric.Workspace, error)
	CreateWorkspace(ctx context.Context, req fabric.CreateWorkspaceRequest) (*fabric.Workspace, error)
	ListRoleAssignments(ctx context.Context, workspaceID string) ([]fabric.RoleAssignment, error)
	AddRoleAssignment(ctx context.Context, workspaceID string, principal fabric.Principal, role string) error
}

// RoleConfig controls role assignment after provisioning.
type RoleConfig struct {
	// Skip disables role assignment entirely.
	Skip bool
	// Mandatory turns assignment failures into a ProvisioningError.
	Mandatory bool
}

// Provisioned is the result of EnsureWorkspace.
type Provisioned struct {
	Handle  domain.WorkspaceHandle
	Created bool
}

// Provisioner performs idempotent get-or-create of the target workspace.
type Provisioner struct {
	api    WorkspaceAPI
	roles  RoleConfig
	logger *slog.Logger
}

// New creates a provisioner.
func New(api WorkspaceAPI, roles RoleConfig, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		api:    api,
		roles:  roles,
		logger: logger.With("component", "provisioner"),
	}
}

// =============================================================================
// Workspace
// =============================================================================

// EnsureWorkspace resolves ref to an existing workspace or creates it.
//
// An id that resolves is returned unchanged. An id that does not resolve
// falls back to the name, when one is given. A name that does not resolve
// is created under capacityID. A creation conflict means another caller won
// the race, so the name is looked up again.
func (p *Provisioner) EnsureWorkspace(ctx context.Context, ref domain.WorkspaceRef, capacityID string) (Provisioned, error) {
	if ref.IsZero() {
		return Provisioned{}, domain.ProvisioningError("EnsureWorkspace", "no target workspace id or name configured", nil)
	}

	if ref.ID != "" {
		ws, err := p.api.GetWorkspace(ctx, ref.ID)
		switch {
		case err == nil:
			p.logger.Info("using existing workspace", "workspace_id", ws.ID, "name", ws.DisplayName)
			return Provisioned{Handle: handleOf(ws)}, nil
		case errors.Is(err, fabric.ErrNotFound) && ref.Name != "":
			p.logger.Warn("workspace id not found, falling back to name", "workspace_id", ref.ID, "name", ref.Name)
		default:
			return Provisioned{}, p.fail("resolve workspace "+ref.ID, err)
		}
	}

	ws, err := p.api.FindWorkspaceByName(ctx, ref.Name)
	if err != nil {
		return Provisioned{}, p.fail("look up workspace "+ref.Name, err)
	}
	if ws != nil {
		p.logger.Info("using existing workspace", "workspace_id", ws.ID, "name", ws.DisplayName)
		return Provisioned{Handle: handleOf(ws)}, nil
	}

	if capacityID == "" {
		return Provisioned{}, domain.ProvisioningError("EnsureWorkspace", "workspace "+ref.Name+" does not exist and no capacity is configured", nil)
	}

	p.logger.Info("creating workspace", "name", ref.Name, "capacity_id", capacityID)
	ws, err = p.api.CreateWorkspace(ctx, fabric.CreateWorkspaceRequest{
		DisplayName: ref.Name,
		CapacityID:  capacityID,
		Description: "Production workspace managed by promoter",
	})
	if errors.Is(err, fabric.ErrConflict) {
		p.logger.Info("workspace already exists, looking it up", "name", ref.Name)
		ws, err = p.api.FindWorkspaceByName(ctx, ref.Name)
		if err == nil && ws == nil {
			return Provisioned{}, domain.ProvisioningError("EnsureWorkspace", "workspace "+ref.Name+" reported as existing but not visible", nil)
		}
		if err == nil {
			return Provisioned{Handle: handleOf(ws)}, nil
		}
	}
	if err != nil {
		return Provisioned{}, p.fail("create workspace "+ref.Name, err)
	}

	p.logger.Info("created workspace", "workspace_id", ws.ID, "name", ws.DisplayName)
	return Provisioned{Handle: handleOf(ws), Created: true}, nil
}

// =============================================================================
// Role Assignment
// =============================================================================

// AssignRole grants principal the role in the workspace unless it already
// holds that role or Admin. Failures are logged and ignored unless the
// provisioner was configured with RoleConfig.Mandatory.
func (p *Provisioner) AssignRole(ctx context.Context, handle domain.WorkspaceHandle, principal fabric.Principal, role string) error {
	logger := p.logger.With("workspace_id", handle.ID, "principal_id", principal.ID, "role", role)

	if p.roles.Skip {
		logger.Info("role assignment skipped by configuration")
		return nil
	}
	if principal.ID == "" {
		return p.roleFailure(logger, "no principal configured", nil)
	}

	existing, err := p.api.ListRoleAssignments(ctx, handle.ID)
	if err != nil {
		return p.roleFailure(logger, "list role assignments", err)
	}
	for _, ra := range existing {
		if ra.Principal.ID != principal.ID {
			continue
		}
		if ra.Role == role || ra.Role == fabric.RoleAdmin {
			logger.Info("principal already has access", "current_role", ra.Role)
			return nil
		}
	}

	if err := p.api.AddRoleAssignment(ctx, handle.ID, principal, role); err != nil {
		if errors.Is(err, fabric.ErrConflict) {
			logger.Info("principal already has a role in the workspace")
			return nil
		}
		return p.roleFailure(logger, "add role assignment", err)
	}
	logger.Info("assigned role")
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (p *Provisioner) roleFailure(logger *slog.Logger, msg string, err error) error {
	if p.roles.Mandatory {
		return domain.ProvisioningError("AssignRole", msg, err)
	}
	logger.Warn("role assignment failed, continuing", "reason", msg, "error", err)
	return nil
}

func (p *Provisioner) fail(msg string, err error) error {
	if errors.Is(err, domain.ErrAuthentication) {
		return err
	}
	if errors.Is(err, fabric.ErrUnauthorized) {
		return domain.AuthenticationError("EnsureWorkspace", msg, err)
	}
	return domain.ProvisioningError("EnsureWorkspace", msg, err)
}

func handleOf(ws *fabric.Workspace) domain.WorkspaceHandle {
	return domain.WorkspaceHandle{ID: ws.ID, Name: ws.DisplayName, Exists: true}
}
