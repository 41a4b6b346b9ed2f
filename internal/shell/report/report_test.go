package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/core/summary"
)

func testDocument(t *testing.T) Document {
	t.Helper()
	ok, err := domain.NewItem("Sales", domain.ItemTypeReport, domain.RemoteRef{WorkspaceID: "dev", ItemID: "1"})
	require.NoError(t, err)
	bad, err := domain.NewItem("Orders", domain.ItemTypeDataflow, domain.RemoteRef{WorkspaceID: "dev", ItemID: "2"})
	require.NoError(t, err)

	sum := summary.New()
	sum.Append(domain.Succeeded(ok))
	sum.Append(domain.Failed(bad, errors.New("status 500")))

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return Document{
		RunID:      "run-1",
		Source:     "workspace dev",
		Target:     domain.WorkspaceHandle{ID: "prod", Name: "Prod", Exists: true},
		TypeFilter: "all",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Warnings:   WarningStrings([]domain.ClassificationWarning{{Entry: "Board", Reason: "item type Dashboard is not deployable"}}),
		Summary:    sum.Report(),
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"deployment_report.json", FormatJSON},
		{"out/report.yaml", FormatYAML},
		{"report.YML", FormatYAML},
		{"report", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFor(tt.path))
		})
	}
}

func TestEncode_JSONShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatJSON, testDocument(t)))

	out := buf.String()
	assert.Contains(t, out, `"success_count": 1`)
	assert.Contains(t, out, `"failed_count": 1`)
	assert.Contains(t, out, `"detail": "status 500"`)
	assert.Contains(t, out, `"run_id": "run-1"`)
}

func TestEncode_UnknownFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, Format("xml"), Document{})
	assert.ErrorContains(t, err, "unsupported report format")
}

func TestWrite_CreatesDirectories(t *testing.T) {
	fsys := afero.NewMemMapFs()
	doc := testDocument(t)

	require.NoError(t, Write(fsys, "/out/reports/run.yaml", doc))

	got, err := Read(fsys, "/out/reports/run.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Summary.Total)
	assert.Equal(t, "Orders", got.Summary.Details[1].Name)
	assert.Equal(t, domain.OutcomeFailed, got.Summary.Details[1].Status)
	assert.Equal(t, []string{"Board: item type Dashboard is not deployable"}, got.Warnings)
	assert.True(t, doc.StartedAt.Equal(got.StartedAt))
}

func TestWrite_Overwrites(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "report.json", bytes.Repeat([]byte("x"), 100000), 0o644))

	require.NoError(t, Write(fsys, "report.json", Document{Source: "s"}))

	got, err := Read(fsys, "report.json")
	require.NoError(t, err)
	assert.Equal(t, "s", got.Source)
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(afero.NewMemMapFs(), "nope.json")
	assert.Error(t, err)
}
