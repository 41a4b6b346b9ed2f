package deployer

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/shell/auth"
	"github.com/artpar/promoter/internal/shell/fabric"
	"github.com/artpar/promoter/internal/shell/fabric/fabrictest"
)

func fakeAPI(t *testing.T) (*fabrictest.Server, *fabric.Client) {
	t.Helper()
	srv := fabrictest.New(t)
	return srv, fabric.NewClient(fabric.Config{BaseURL: srv.BaseURL()}, auth.StaticTokenProvider(fabrictest.Token), nil)
}

func mustItem(t *testing.T, name string, typ domain.ItemType, origin domain.Origin) domain.Item {
	t.Helper()
	item, err := domain.NewItem(name, typ, origin)
	require.NoError(t, err)
	return item
}

// =============================================================================
// RemoteCopyAction Tests
// =============================================================================

func TestRemoteCopyAction_CopiesWithSuffix(t *testing.T) {
	srv, client := fakeAPI(t)
	dev := srv.AddWorkspace("Dev")
	prod := srv.AddWorkspace("Prod")
	src := srv.AddItem(dev.ID, "Sales", "Report")

	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: dev.ID, ItemID: src.ID})
	action := NewRemoteCopyAction(client, "_Prod", nil)

	require.NoError(t, action.Deploy(context.Background(), item, domain.WorkspaceHandle{ID: prod.ID}))

	items := srv.Items(prod.ID)
	require.Len(t, items, 1)
	assert.Equal(t, "Sales_Prod", items[0].DisplayName)
}

func TestRemoteCopyAction_APIError(t *testing.T) {
	srv, client := fakeAPI(t)
	dev := srv.AddWorkspace("Dev")
	prod := srv.AddWorkspace("Prod")
	src := srv.AddItem(dev.ID, "Sales", "Report")
	srv.Fail(http.MethodPost, "/workspaces/"+dev.ID+"/items/*", http.StatusInternalServerError)

	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: dev.ID, ItemID: src.ID})
	err := NewRemoteCopyAction(client, "", nil).Deploy(context.Background(), item, domain.WorkspaceHandle{ID: prod.ID})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestRemoteCopyAction_RejectsLocalItem(t *testing.T) {
	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.LocalRef{Path: "/repo/Development/Sales.Report"})
	err := NewRemoteCopyAction(nil, "", nil).Deploy(context.Background(), item, domain.WorkspaceHandle{ID: "ws"})
	assert.Error(t, err)
}

// =============================================================================
// LocalPackageAction Tests
// =============================================================================

func TestLocalPackageAction_UploadsDefinition(t *testing.T) {
	srv, client := fakeAPI(t)
	prod := srv.AddWorkspace("Prod")

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/repo/Development/Ingest.Pipeline/pipeline-content.json", []byte(`{"activities":[]}`), 0o644))

	item := mustItem(t, "Ingest", domain.ItemTypePipeline, domain.LocalRef{Path: "/repo/Development/Ingest.Pipeline"})
	action := NewLocalPackageAction(client, fsys, nil)

	require.NoError(t, action.Deploy(context.Background(), item, domain.WorkspaceHandle{ID: prod.ID}))

	items := srv.Items(prod.ID)
	require.Len(t, items, 1)
	assert.Equal(t, "Ingest", items[0].DisplayName)
	assert.Equal(t, "DataPipeline", items[0].Type)
}

func TestLocalPackageAction_NotebookFallback(t *testing.T) {
	rec := &recordingAPI{}
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/repo/Development/Explore.Notebook/Explore.ipynb", []byte("{}"), 0o644))

	item := mustItem(t, "Explore", domain.ItemTypeNotebook, domain.LocalRef{Path: "/repo/Development/Explore.Notebook"})
	require.NoError(t, NewLocalPackageAction(rec, fsys, nil).Deploy(context.Background(), item, domain.WorkspaceHandle{ID: "ws"}))

	require.Len(t, rec.created, 1)
	part := rec.created[0].Definition.Parts[0]
	assert.Equal(t, "Explore.ipynb", part.Path)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("{}")), part.Payload)
	assert.Equal(t, fabric.PayloadTypeInlineBase64, part.PayloadType)
}

func TestLocalPackageAction_MissingDefinition(t *testing.T) {
	rec := &recordingAPI{}
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/repo/Development/Sales.Report", 0o755))

	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.LocalRef{Path: "/repo/Development/Sales.Report"})
	err := NewLocalPackageAction(rec, fsys, nil).Deploy(context.Background(), item, domain.WorkspaceHandle{ID: "ws"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "definition file not found")
	assert.Empty(t, rec.created)
}

// =============================================================================
// Dispatcher Tests
// =============================================================================

type recordingAPI struct {
	copied  []string
	created []fabric.CreateItemRequest
}

func (r *recordingAPI) CopyItem(_ context.Context, _, itemID, _, name string) (*fabric.Item, error) {
	r.copied = append(r.copied, itemID)
	return &fabric.Item{ID: "copy-" + itemID, DisplayName: name}, nil
}

func (r *recordingAPI) CreateItem(_ context.Context, _ string, req fabric.CreateItemRequest) error {
	r.created = append(r.created, req)
	return nil
}

func TestDispatcher_RoutesByOrigin(t *testing.T) {
	rec := &recordingAPI{}
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/repo/Development/Model.SemanticModel/definition.pbism", []byte("{}"), 0o644))

	d := NewDefaultDispatcher(NewRemoteCopyAction(rec, "", nil), NewLocalPackageAction(rec, fsys, nil), nil)
	target := domain.WorkspaceHandle{ID: "prod"}

	remote := mustItem(t, "Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: "dev", ItemID: "i-1"})
	local := mustItem(t, "Model", domain.ItemTypeSemanticModel, domain.LocalRef{Path: "/repo/Development/Model.SemanticModel"})

	require.NoError(t, d.Deploy(context.Background(), remote, target))
	require.NoError(t, d.Deploy(context.Background(), local, target))

	assert.Equal(t, []string{"i-1"}, rec.copied)
	require.Len(t, rec.created, 1)
	assert.Equal(t, "SemanticModel", rec.created[0].Type)
}

func TestDispatcher_UnregisteredOrigin(t *testing.T) {
	d := NewDispatcher(nil)
	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: "dev", ItemID: "i-1"})

	err := d.Deploy(context.Background(), item, domain.WorkspaceHandle{ID: "prod"})
	assert.ErrorContains(t, err, "no deployment action for remote items")
}

// =============================================================================
// Decorator Tests
// =============================================================================

func TestNewPaced_ZeroIntervalIsPassThrough(t *testing.T) {
	inner := ActionFunc(func(context.Context, domain.Item, domain.WorkspaceHandle) error { return nil })
	_, paced := NewPaced(inner, 0).(*Paced)
	assert.False(t, paced)
}

func TestPaced_SpacesCalls(t *testing.T) {
	var stamps []time.Time
	inner := ActionFunc(func(context.Context, domain.Item, domain.WorkspaceHandle) error {
		stamps = append(stamps, time.Now())
		return nil
	})
	action := NewPaced(inner, 50*time.Millisecond)
	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: "dev", ItemID: "i-1"})

	for i := 0; i < 3; i++ {
		require.NoError(t, action.Deploy(context.Background(), item, domain.WorkspaceHandle{ID: "prod"}))
	}

	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[0]), 90*time.Millisecond)
}

func TestPaced_CancelledWait(t *testing.T) {
	calls := 0
	inner := ActionFunc(func(context.Context, domain.Item, domain.WorkspaceHandle) error {
		calls++
		return nil
	})
	action := NewPaced(inner, time.Hour)
	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: "dev", ItemID: "i-1"})

	require.NoError(t, action.Deploy(context.Background(), item, domain.WorkspaceHandle{ID: "prod"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := action.Deploy(ctx, item, domain.WorkspaceHandle{ID: "prod"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDryRun_NeverFails(t *testing.T) {
	item := mustItem(t, "Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: "dev", ItemID: "i-1"})
	assert.NoError(t, NewDryRun(nil).Deploy(context.Background(), item, domain.WorkspaceHandle{ID: "prod"}))
}

func TestActionFunc(t *testing.T) {
	want := errors.New("boom")
	f := ActionFunc(func(context.Context, domain.Item, domain.WorkspaceHandle) error { return want })
	assert.ErrorIs(t, f.Deploy(context.Background(), domain.Item{}, domain.WorkspaceHandle{}), want)
}
