package fabric_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/shell/auth"
	"github.com/artpar/promoter/internal/shell/fabric"
	"github.com/artpar/promoter/internal/shell/fabric/fabrictest"
)

func newClient(t *testing.T, srv *fabrictest.Server) *fabric.Client {
	t.Helper()
	return fabric.NewClient(fabric.Config{BaseURL: srv.BaseURL()}, auth.StaticTokenProvider(fabrictest.Token), nil)
}

// =============================================================================
// Workspace Tests
// =============================================================================

func TestClient_GetWorkspace(t *testing.T) {
	srv := fabrictest.New(t)
	ws := srv.AddWorkspace("Prod")
	c := newClient(t, srv)

	got, err := c.GetWorkspace(context.Background(), ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "Prod", got.DisplayName)

	_, err = c.GetWorkspace(context.Background(), "missing")
	assert.ErrorIs(t, err, fabric.ErrNotFound)
}

func TestClient_FindWorkspaceByName(t *testing.T) {
	srv := fabrictest.New(t)
	srv.PageSize = 1
	srv.AddWorkspace("Dev")
	prod := srv.AddWorkspace("Prod")
	c := newClient(t, srv)

	got, err := c.FindWorkspaceByName(context.Background(), "Prod")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, prod.ID, got.ID)

	got, err = c.FindWorkspaceByName(context.Background(), "Staging")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClient_CreateWorkspace_Conflict(t *testing.T) {
	srv := fabrictest.New(t)
	srv.AddWorkspace("Prod")
	c := newClient(t, srv)

	_, err := c.CreateWorkspace(context.Background(), fabric.CreateWorkspaceRequest{DisplayName: "Prod"})
	assert.ErrorIs(t, err, fabric.ErrConflict)

	var apiErr *fabric.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "WorkspaceNameAlreadyExists", apiErr.Code)
	assert.Equal(t, "CreateWorkspace", apiErr.Op)
}

// =============================================================================
// Item Tests
// =============================================================================

func TestClient_ListItems_FollowsContinuation(t *testing.T) {
	srv := fabrictest.New(t)
	srv.PageSize = 2
	ws := srv.AddWorkspace("Dev")
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		srv.AddItem(ws.ID, name, "Report")
	}
	c := newClient(t, srv)

	items, err := c.ListItems(context.Background(), ws.ID)
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, "e", items[4].DisplayName)
	assert.Equal(t, 3, srv.CountRequests(http.MethodGet, "/workspaces/"+ws.ID+"/items"))
}

func TestClient_ListItems_ContinuationURI(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/workspaces/ws/items", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			_ = json.NewEncoder(w).Encode(map[string]any{"value": []fabric.Item{{ID: "2"}}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"value":           []fabric.Item{{ID: "1"}},
			"continuationUri": srvURL + "/v1/workspaces/ws/items?page=2",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	srvURL = server.URL

	c := fabric.NewClient(fabric.Config{BaseURL: server.URL + "/v1"}, auth.StaticTokenProvider("t"), nil)
	items, err := c.ListItems(context.Background(), "ws")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "2", items[1].ID)
}

func TestClient_ListItems_RepeatedContinuationStops(t *testing.T) {
	tests := []struct {
		name string
		page func(srvURL string) map[string]any
	}{
		{
			name: "token",
			page: func(string) map[string]any {
				return map[string]any{"value": []fabric.Item{{ID: "1"}}, "continuationToken": "same"}
			},
		},
		{
			name: "uri",
			page: func(srvURL string) map[string]any {
				return map[string]any{"value": []fabric.Item{{ID: "1"}}, "continuationUri": srvURL + "/v1/workspaces/ws/items"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				srvURL   string
				requests int
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				_ = json.NewEncoder(w).Encode(tt.page(srvURL))
			}))
			defer server.Close()
			srvURL = server.URL

			c := fabric.NewClient(fabric.Config{BaseURL: server.URL + "/v1"}, auth.StaticTokenProvider("t"), nil)
			_, err := c.ListItems(context.Background(), "ws")
			require.Error(t, err)
			assert.ErrorIs(t, err, fabric.ErrPagingLoop)
			assert.LessOrEqual(t, requests, 2)
		})
	}
}

func TestClient_CopyItem(t *testing.T) {
	srv := fabrictest.New(t)
	dev := srv.AddWorkspace("Dev")
	prod := srv.AddWorkspace("Prod")
	src := srv.AddItem(dev.ID, "Sales", "Report")
	c := newClient(t, srv)

	copied, err := c.CopyItem(context.Background(), dev.ID, src.ID, prod.ID, "Sales_Prod")
	require.NoError(t, err)
	assert.Equal(t, "Sales_Prod", copied.DisplayName)

	items := srv.Items(prod.ID)
	require.Len(t, items, 1)
	assert.Equal(t, "Report", items[0].Type)
}

func TestClient_CreateItem_SendsDefinition(t *testing.T) {
	srv := fabrictest.New(t)
	prod := srv.AddWorkspace("Prod")
	c := newClient(t, srv)

	err := c.CreateItem(context.Background(), prod.ID, fabric.CreateItemRequest{
		DisplayName: "Orders",
		Type:        "DataPipeline",
		Definition: &fabric.Definition{Parts: []fabric.DefinitionPart{
			{Path: "pipeline-content.json", Payload: "e30=", PayloadType: fabric.PayloadTypeInlineBase64},
		}},
	})
	require.NoError(t, err)

	reqs := srv.Requests()
	require.NotEmpty(t, reqs)
	var body fabric.CreateItemRequest
	require.NoError(t, json.Unmarshal(reqs[len(reqs)-1].Body, &body))
	assert.Equal(t, "InlineBase64", body.Definition.Parts[0].PayloadType)
	assert.Equal(t, "pipeline-content.json", body.Definition.Parts[0].Path)
}

func TestClient_CreateItem_AcceptsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := fabric.NewClient(fabric.Config{BaseURL: server.URL}, auth.StaticTokenProvider("t"), nil)
	err := c.CreateItem(context.Background(), "ws", fabric.CreateItemRequest{DisplayName: "x", Type: "Report"})
	assert.NoError(t, err)
}

// =============================================================================
// Role Assignment Tests
// =============================================================================

func TestClient_RoleAssignments(t *testing.T) {
	srv := fabrictest.New(t)
	ws := srv.AddWorkspace("Prod")
	c := newClient(t, srv)

	principal := fabric.Principal{ID: "sp-1", Type: fabric.PrincipalServicePrincipal}
	require.NoError(t, c.AddRoleAssignment(context.Background(), ws.ID, principal, fabric.RoleContributor))

	got, err := c.ListRoleAssignments(context.Background(), ws.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sp-1", got[0].Principal.ID)
	assert.Equal(t, fabric.RoleContributor, got[0].Role)
}

// =============================================================================
// Error Handling Tests
// =============================================================================

func TestClient_Unauthorized(t *testing.T) {
	srv := fabrictest.New(t)
	ws := srv.AddWorkspace("Dev")
	c := fabric.NewClient(fabric.Config{BaseURL: srv.BaseURL()}, auth.StaticTokenProvider("wrong"), nil)

	_, err := c.ListItems(context.Background(), ws.ID)
	assert.ErrorIs(t, err, fabric.ErrUnauthorized)
	assert.NotErrorIs(t, err, fabric.ErrNotFound)
}

func TestClient_Forbidden_IsUnauthorized(t *testing.T) {
	srv := fabrictest.New(t)
	ws := srv.AddWorkspace("Dev")
	srv.Fail(http.MethodGet, "/workspaces/"+ws.ID+"/items", http.StatusForbidden)
	c := newClient(t, srv)

	_, err := c.ListItems(context.Background(), ws.ID)
	assert.ErrorIs(t, err, fabric.ErrUnauthorized)
}

func TestClient_PlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	c := fabric.NewClient(fabric.Config{BaseURL: server.URL}, auth.StaticTokenProvider("t"), nil)
	_, err := c.ListItems(context.Background(), "ws")
	require.Error(t, err)
	assert.Equal(t, "ListItems: unexpected status 502: upstream exploded", err.Error())
}

type invalidatingProvider struct {
	invalidated bool
}

func (p *invalidatingProvider) Token(context.Context) (string, error) { return "stale", nil }
func (p *invalidatingProvider) Invalidate()                           { p.invalidated = true }

func TestClient_401InvalidatesCachedToken(t *testing.T) {
	srv := fabrictest.New(t)
	tokens := &invalidatingProvider{}
	c := fabric.NewClient(fabric.Config{BaseURL: srv.BaseURL()}, tokens, nil)

	_, err := c.ListWorkspaces(context.Background())
	require.Error(t, err)
	assert.True(t, tokens.invalidated)
}

func TestClient_TokenErrorStopsRequest(t *testing.T) {
	srv := fabrictest.New(t)
	c := fabric.NewClient(fabric.Config{BaseURL: srv.BaseURL()}, auth.StaticTokenProvider(""), nil)

	_, err := c.ListWorkspaces(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.Empty(t, srv.Requests())
}
