package classify

import "github.com/artpar/promoter/internal/core/domain"

var definitionFiles = map[domain.ItemType]string{
	domain.ItemTypeReport:        "definition.pbir",
	domain.ItemTypeSemanticModel: "definition.pbism",
	domain.ItemTypeLakehouse:     "lakehouse.metadata.json",
	domain.ItemTypeDataflow:      "mashup.pq",
	domain.ItemTypeNotebook:      "notebook-content.py",
	domain.ItemTypePipeline:      "pipeline-content.json",
}

// DefinitionFile returns the file inside an item folder that holds the item
// definition.
func DefinitionFile(t domain.ItemType) (string, bool) {
	f, ok := definitionFiles[t]
	return f, ok
}

// DefinitionCandidates returns the file names to try, in order, for an item.
// Notebooks exported as .ipynb fall back to "<name>.ipynb".
func DefinitionCandidates(item domain.Item) []string {
	f, ok := DefinitionFile(item.Type)
	if !ok {
		return nil
	}
	candidates := []string{f}
	if item.Type == domain.ItemTypeNotebook {
		candidates = append(candidates, item.Name+".ipynb")
	}
	return candidates
}
