package fabric

// =============================================================================
// Workspace Types
// =============================================================================

// Workspace is a platform workspace.
type Workspace struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	CapacityID  string `json:"capacityId,omitempty"`
}

// CreateWorkspaceRequest is the body of POST /workspaces.
type CreateWorkspaceRequest struct {
	DisplayName string `json:"displayName"`
	CapacityID  string `json:"capacityId,omitempty"`
	Description string `json:"description,omitempty"`
}

// =============================================================================
// Item Types
// =============================================================================

// Item is an item record as returned by the listing endpoint.
type Item struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// CopyItemRequest is the body of POST /workspaces/{id}/items/{id}/copyTo.
type CopyItemRequest struct {
	TargetWorkspaceID string `json:"targetWorkspaceId"`
	DisplayName       string `json:"displayName"`
}

// PayloadTypeInlineBase64 marks a definition part carried inline.
const PayloadTypeInlineBase64 = "InlineBase64"

// DefinitionPart is one file of an item definition.
type DefinitionPart struct {
	Path        string `json:"path"`
	Payload     string `json:"payload"`
	PayloadType string `json:"payloadType"`
}

// Definition is an item definition made of parts.
type Definition struct {
	Parts []DefinitionPart `json:"parts"`
}

// CreateItemRequest is the body of POST /workspaces/{id}/items.
type CreateItemRequest struct {
	DisplayName string      `json:"displayName"`
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Definition  *Definition `json:"definition,omitempty"`
}

// =============================================================================
// Role Assignment Types
// =============================================================================

// Principal types accepted by the role assignment endpoint.
const (
	PrincipalUser             = "User"
	PrincipalGroup            = "Group"
	PrincipalServicePrincipal = "ServicePrincipal"
)

// Workspace roles.
const (
	RoleAdmin       = "Admin"
	RoleMember      = "Member"
	RoleContributor = "Contributor"
	RoleViewer      = "Viewer"
)

// Principal identifies a user, group or service principal.
type Principal struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// RoleAssignment grants a principal a role in a workspace.
type RoleAssignment struct {
	ID        string    `json:"id,omitempty"`
	Principal Principal `json:"principal"`
	Role      string    `json:"role"`
}

// listResponse is the paged envelope used by list endpoints.
type listResponse[T any] struct {
	Value             []T    `json:"value"`
	ContinuationToken string `json:"continuationToken,omitempty"`
	ContinuationURI   string `json:"continuationUri,omitempty"`
}
