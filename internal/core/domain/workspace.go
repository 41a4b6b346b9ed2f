package domain

// WorkspaceHandle identifies the deployment target. It carries no identity
// beyond the platform's own workspace id.
type WorkspaceHandle struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// WorkspaceRef is what the caller knows about the target before provisioning:
// an id, a display name, or both.
type WorkspaceRef struct {
	ID   string
	Name string
}

// IsZero reports whether neither id nor name is set.
func (r WorkspaceRef) IsZero() bool {
	return r.ID == "" && r.Name == ""
}

// String prefers the name for log output.
func (r WorkspaceRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}
