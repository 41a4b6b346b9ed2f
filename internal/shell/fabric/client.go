// Package fabric provides a client for the analytics platform's REST API.
// This is part of the Imperative Shell - handles I/O with the platform.
package fabric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/promoter/internal/shell/auth"
)

// DefaultBaseURL is the public Fabric REST endpoint.
const DefaultBaseURL = "https://api.fabric.microsoft.com/v1"

// Client provides methods for the workspace, item and role assignment APIs.
type Client struct {
	baseURL    string
	tokens     auth.TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string // e.g., "https://api.fabric.microsoft.com/v1"
	Timeout time.Duration
}

// NewClient creates a new platform client. Every request carries a bearer
// token from tokens.
func NewClient(cfg Config, tokens auth.TokenProvider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "fabric_client"),
	}
}

// =============================================================================
// Workspace Operations
// =============================================================================

// GetWorkspace fetches a workspace by id.
func (c *Client) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	var ws Workspace
	if err := c.do(ctx, "GetWorkspace", http.MethodGet, "/workspaces/"+url.PathEscape(id), nil, &ws, http.StatusOK); err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListWorkspaces lists every workspace the caller can see.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	return list[Workspace](ctx, c, "ListWorkspaces", "/workspaces")
}

// FindWorkspaceByName returns the workspace with the given display name, or
// nil if none exists.
func (c *Client) FindWorkspaceByName(ctx context.Context, name string) (*Workspace, error) {
	workspaces, err := c.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	for i := range workspaces {
		if workspaces[i].DisplayName == name {
			return &workspaces[i], nil
		}
	}
	return nil, nil // Not found
}

// CreateWorkspace creates a workspace assigned to a capacity.
func (c *Client) CreateWorkspace(ctx context.Context, req CreateWorkspaceRequest) (*Workspace, error) {
	var ws Workspace
	if err := c.do(ctx, "CreateWorkspace", http.MethodPost, "/workspaces", req, &ws, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &ws, nil
}

// =============================================================================
// Role Assignment Operations
// =============================================================================

// ListRoleAssignments lists the role assignments of a workspace.
func (c *Client) ListRoleAssignments(ctx context.Context, workspaceID string) ([]RoleAssignment, error) {
	return list[RoleAssignment](ctx, c, "ListRoleAssignments", "/workspaces/"+url.PathEscape(workspaceID)+"/roleAssignments")
}

// AddRoleAssignment grants principal the given role in a workspace.
func (c *Client) AddRoleAssignment(ctx context.Context, workspaceID string, principal Principal, role string) error {
	body := RoleAssignment{Principal: principal, Role: role}
	path := "/workspaces/" + url.PathEscape(workspaceID) + "/roleAssignments"
	return c.do(ctx, "AddRoleAssignment", http.MethodPost, path, body, nil, http.StatusOK, http.StatusCreated)
}

// =============================================================================
// Item Operations
// =============================================================================

// ListItems lists all items in a workspace, following continuation links.
func (c *Client) ListItems(ctx context.Context, workspaceID string) ([]Item, error) {
	return list[Item](ctx, c, "ListItems", "/workspaces/"+url.PathEscape(workspaceID)+"/items")
}

// CopyItem copies an item from its workspace into targetWorkspaceID.
func (c *Client) CopyItem(ctx context.Context, sourceWorkspaceID, itemID, targetWorkspaceID, displayName string) (*Item, error) {
	path := "/workspaces/" + url.PathEscape(sourceWorkspaceID) + "/items/" + url.PathEscape(itemID) + "/copyTo"
	body := CopyItemRequest{TargetWorkspaceID: targetWorkspaceID, DisplayName: displayName}

	var item Item
	if err := c.do(ctx, "CopyItem", http.MethodPost, path, body, &item, http.StatusOK, http.StatusCreated, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem creates an item from an inline definition. A 202 response means
// the platform accepted a long running creation.
func (c *Client) CreateItem(ctx context.Context, workspaceID string, req CreateItemRequest) error {
	path := "/workspaces/" + url.PathEscape(workspaceID) + "/items"
	return c.do(ctx, "CreateItem", http.MethodPost, path, req, nil, http.StatusOK, http.StatusCreated, http.StatusAccepted)
}

// =============================================================================
// Helper Methods
// =============================================================================

// list walks a paged list endpoint. A continuation that points back at a
// page already fetched fails with ErrPagingLoop.
func list[T any](ctx context.Context, c *Client, op, path string) ([]T, error) {
	var (
		all  []T
		next = c.baseURL + path
		seen = make(map[string]bool)
	)
	for next != "" {
		if seen[next] {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrPagingLoop, next)
		}
		seen[next] = true

		var page listResponse[T]
		if err := c.doURL(ctx, op, http.MethodGet, next, nil, &page, http.StatusOK); err != nil {
			return nil, err
		}
		all = append(all, page.Value...)

		switch {
		case page.ContinuationURI != "":
			next = page.ContinuationURI
		case page.ContinuationToken != "":
			next = c.baseURL + path + "?continuationToken=" + url.QueryEscape(page.ContinuationToken)
		default:
			next = ""
		}
	}
	return all, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any, okStatus ...int) error {
	return c.doURL(ctx, op, method, c.baseURL+path, in, out, okStatus...)
}

func (c *Client) doURL(ctx context.Context, op, method, rawURL string, in, out any, okStatus ...int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if err := c.setHeaders(ctx, req); err != nil {
		return err
	}

	c.logger.Debug("sending request", "op", op, "method", method, "url", rawURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	if !statusIn(resp.StatusCode, okStatus) {
		return c.apiError(op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return nil
}

func (c *Client) apiError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
		apiErr.Code = eb.ErrorCode
		apiErr.Message = eb.Message
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Drop a cached token the platform no longer accepts.
		if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
	}
	c.logger.Debug("request failed", "op", op, "status", resp.StatusCode, "code", apiErr.Code)
	return apiErr
}

func statusIn(code int, ok []int) bool {
	for _, s := range ok {
		if code == s {
			return true
		}
	}
	return false
}
