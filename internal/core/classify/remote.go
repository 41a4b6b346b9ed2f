package classify

import "github.com/artpar/promoter/internal/core/domain"

// remoteTypes maps the platform's item type strings to item types. The
// platform reports pipelines as "DataPipeline".
var remoteTypes = map[string]domain.ItemType{
	"Dataflow":      domain.ItemTypeDataflow,
	"Lakehouse":     domain.ItemTypeLakehouse,
	"Report":        domain.ItemTypeReport,
	"SemanticModel": domain.ItemTypeSemanticModel,
	"Notebook":      domain.ItemTypeNotebook,
	"DataPipeline":  domain.ItemTypePipeline,
	"Pipeline":      domain.ItemTypePipeline,
}

// ParseRemoteType maps a platform type string to an item type.
func ParseRemoteType(s string) (domain.ItemType, bool) {
	t, ok := remoteTypes[s]
	return t, ok
}

// RemoteTypeName returns the type string the platform expects when creating
// an item of type t.
func RemoteTypeName(t domain.ItemType) string {
	if t == domain.ItemTypePipeline {
		return "DataPipeline"
	}
	return string(t)
}
