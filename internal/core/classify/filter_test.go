package classify

import (
	"testing"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeFilter_Empty(t *testing.T) {
	f, err := ParseTypeFilter(nil)
	require.NoError(t, err)

	assert.False(t, f.Active())
	assert.True(t, f.Allows(domain.ItemTypeDataflow))
	assert.Equal(t, "all", f.String())
}

func TestParseTypeFilter_CommaSeparated(t *testing.T) {
	f, err := ParseTypeFilter([]string{"Report, SemanticModel", "Notebook"})
	require.NoError(t, err)

	assert.True(t, f.Allows(domain.ItemTypeReport))
	assert.True(t, f.Allows(domain.ItemTypeSemanticModel))
	assert.True(t, f.Allows(domain.ItemTypeNotebook))
	assert.False(t, f.Allows(domain.ItemTypeDataflow))
	assert.Equal(t, "Notebook,Report,SemanticModel", f.String())
}

func TestParseTypeFilter_ReportsEveryUnknownName(t *testing.T) {
	_, err := ParseTypeFilter([]string{"Report,Dashboard", "Warehouse"})
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrUnknownItemType)
	assert.Contains(t, err.Error(), "Dashboard")
	assert.Contains(t, err.Error(), "Warehouse")
}

func TestNewTypeFilter_NoTypes(t *testing.T) {
	assert.Nil(t, NewTypeFilter())
}
