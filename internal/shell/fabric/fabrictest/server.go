// Package fabrictest provides an in-memory fake of the platform REST API for
// tests of code built on the fabric client.
package fabrictest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/promoter/internal/shell/fabric"
)

// Token is the bearer token the fake accepts unless Server.Token is changed.
const Token = "test-token"

// Request records one call received by the fake.
type Request struct {
	Method string
	Path   string // Path below the /v1 prefix
	Body   []byte
}

// Server is a fake platform API backed by in-memory state.
type Server struct {
	*httptest.Server

	// Token is the accepted bearer token. Empty disables the check.
	Token string
	// PageSize splits list responses into pages when > 0.
	PageSize int

	mu         sync.Mutex
	nextID     int
	workspaces []fabric.Workspace
	items      map[string][]fabric.Item
	roles      map[string][]fabric.RoleAssignment
	faults     map[string]int
	requests   []Request
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		Token:  Token,
		items:  make(map[string][]fabric.Item),
		roles:  make(map[string][]fabric.RoleAssignment),
		faults: make(map[string]int),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to fabric.Config.
func (s *Server) BaseURL() string {
	return s.URL + "/v1"
}

// =============================================================================
// State Setup
// =============================================================================

// AddWorkspace seeds a workspace and returns it.
func (s *Server) AddWorkspace(name string) fabric.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addWorkspaceLocked(name, "")
}

// AddItem seeds an item in a workspace and returns it.
func (s *Server) AddItem(workspaceID, name, itemType string) fabric.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := fabric.Item{ID: s.newID("item"), Type: itemType, DisplayName: name, WorkspaceID: workspaceID}
	s.items[workspaceID] = append(s.items[workspaceID], item)
	return item
}

// AddRoleAssignment seeds a role assignment in a workspace.
func (s *Server) AddRoleAssignment(workspaceID string, principal fabric.Principal, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra := fabric.RoleAssignment{ID: s.newID("ra"), Principal: principal, Role: role}
	s.roles[workspaceID] = append(s.roles[workspaceID], ra)
}

// Fail makes every request matching method and path (below /v1) answer
// with status. Path may end in "*" to match a prefix.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = status
}

// =============================================================================
// State Inspection
// =============================================================================

// Workspaces returns a copy of all workspaces.
func (s *Server) Workspaces() []fabric.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fabric.Workspace(nil), s.workspaces...)
}

// Items returns a copy of the items of a workspace.
func (s *Server) Items(workspaceID string) []fabric.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fabric.Item(nil), s.items[workspaceID]...)
}

// RoleAssignments returns a copy of the role assignments of a workspace.
func (s *Server) RoleAssignments(workspaceID string) []fabric.RoleAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fabric.RoleAssignment(nil), s.roles[workspaceID]...)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts received requests with the given method and path prefix.
func (s *Server) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// =============================================================================
// Routing
// =============================================================================

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.authenticate)
	r.Use(s.inject)

	r.Route("/v1/workspaces", func(r chi.Router) {
		r.Get("/", s.handleListWorkspaces)
		r.Post("/", s.handleCreateWorkspace)

		r.Route("/{workspaceID}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkspace)
			r.Get("/items", s.handleListItems)
			r.Post("/items", s.handleCreateItem)
			r.Post("/items/{itemID}/copyTo", s.handleCopyItem)
			r.Get("/roleAssignments", s.handleListRoles)
			r.Post("/roleAssignments", s.handleAddRole)
		})
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: apiPath(r), Body: body})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeError(w, http.StatusUnauthorized, "TokenExpired", "access token is invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status, ok := s.faultFor(r.Method, apiPath(r)); ok {
			writeError(w, status, "InjectedFault", http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) faultFor(method, path string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.faults[method+" "+path]; ok {
		return status, true
	}
	for key, status := range s.faults {
		prefix, isPrefix := strings.CutSuffix(key, "*")
		if isPrefix && strings.HasPrefix(method+" "+path, prefix) {
			return status, true
		}
	}
	return 0, false
}

// =============================================================================
// Workspace Handlers
// =============================================================================

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	all := append([]fabric.Workspace(nil), s.workspaces...)
	s.mu.Unlock()

	writePage(w, r, all, s.PageSize)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.workspaceLocked(chi.URLParam(r, "workspaceID"))
	if !ok {
		writeError(w, http.StatusNotFound, "WorkspaceNotFound", "workspace not found")
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req fabric.CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "displayName is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ws := range s.workspaces {
		if ws.DisplayName == req.DisplayName {
			writeError(w, http.StatusConflict, "WorkspaceNameAlreadyExists", "workspace name already exists")
			return
		}
	}
	writeJSON(w, http.StatusCreated, s.addWorkspaceLocked(req.DisplayName, req.CapacityID))
}

// =============================================================================
// Item Handlers
// =============================================================================

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	wsID := chi.URLParam(r, "workspaceID")

	s.mu.Lock()
	_, ok := s.workspaceLocked(wsID)
	all := append([]fabric.Item(nil), s.items[wsID]...)
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "WorkspaceNotFound", "workspace not found")
		return
	}
	writePage(w, r, all, s.PageSize)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	wsID := chi.URLParam(r, "workspaceID")

	var req fabric.CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DisplayName == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "displayName and type are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaceLocked(wsID); !ok {
		writeError(w, http.StatusNotFound, "WorkspaceNotFound", "workspace not found")
		return
	}
	for _, it := range s.items[wsID] {
		if it.DisplayName == req.DisplayName && it.Type == req.Type {
			writeError(w, http.StatusConflict, "ItemDisplayNameAlreadyInUse", "item display name already in use")
			return
		}
	}

	item := fabric.Item{ID: s.newID("item"), Type: req.Type, DisplayName: req.DisplayName, WorkspaceID: wsID}
	s.items[wsID] = append(s.items[wsID], item)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleCopyItem(w http.ResponseWriter, r *http.Request) {
	srcID := chi.URLParam(r, "workspaceID")
	itemID := chi.URLParam(r, "itemID")

	var req fabric.CopyItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetWorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "targetWorkspaceId is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var src *fabric.Item
	for i := range s.items[srcID] {
		if s.items[srcID][i].ID == itemID {
			src = &s.items[srcID][i]
			break
		}
	}
	if src == nil {
		writeError(w, http.StatusNotFound, "ItemNotFound", "item not found")
		return
	}
	if _, ok := s.workspaceLocked(req.TargetWorkspaceID); !ok {
		writeError(w, http.StatusNotFound, "WorkspaceNotFound", "target workspace not found")
		return
	}

	name := req.DisplayName
	if name == "" {
		name = src.DisplayName
	}
	item := fabric.Item{ID: s.newID("item"), Type: src.Type, DisplayName: name, WorkspaceID: req.TargetWorkspaceID}
	s.items[req.TargetWorkspaceID] = append(s.items[req.TargetWorkspaceID], item)
	writeJSON(w, http.StatusCreated, item)
}

// =============================================================================
// Role Assignment Handlers
// =============================================================================

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	wsID := chi.URLParam(r, "workspaceID")

	s.mu.Lock()
	all := append([]fabric.RoleAssignment(nil), s.roles[wsID]...)
	s.mu.Unlock()

	writePage(w, r, all, s.PageSize)
}

func (s *Server) handleAddRole(w http.ResponseWriter, r *http.Request) {
	wsID := chi.URLParam(r, "workspaceID")

	var ra fabric.RoleAssignment
	if err := json.NewDecoder(r.Body).Decode(&ra); err != nil || ra.Principal.ID == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "principal is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles[wsID] {
		if existing.Principal.ID == ra.Principal.ID {
			writeError(w, http.StatusConflict, "PrincipalAlreadyHasWorkspaceRolePermissions", "principal already has a role")
			return
		}
	}
	ra.ID = s.newID("ra")
	s.roles[wsID] = append(s.roles[wsID], ra)
	writeJSON(w, http.StatusCreated, ra)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) addWorkspaceLocked(name, capacityID string) fabric.Workspace {
	ws := fabric.Workspace{ID: s.newID("ws"), DisplayName: name, Type: "Workspace", CapacityID: capacityID}
	s.workspaces = append(s.workspaces, ws)
	return ws
}

func (s *Server) workspaceLocked(id string) (fabric.Workspace, bool) {
	for _, ws := range s.workspaces {
		if ws.ID == id {
			return ws, true
		}
	}
	return fabric.Workspace{}, false
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%04d", prefix, s.nextID)
}

// page mirrors the platform's paged list envelope.
type page[T any] struct {
	Value             []T    `json:"value"`
	ContinuationToken string `json:"continuationToken,omitempty"`
}

func writePage[T any](w http.ResponseWriter, r *http.Request, all []T, size int) {
	if all == nil {
		all = []T{}
	}
	if size <= 0 {
		writeJSON(w, http.StatusOK, page[T]{Value: all})
		return
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("continuationToken"))
	if start > len(all) {
		start = len(all)
	}
	end := min(start+size, len(all))

	resp := page[T]{Value: all[start:end]}
	if end < len(all) {
		resp.ContinuationToken = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"errorCode": code, "message": message})
}

func apiPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/v1")
}
