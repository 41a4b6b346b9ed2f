// Package classify provides pure functions for mapping source entries to item
// types.
//
// Nothing in this package performs I/O. The imperative shell
// (internal/shell/source, internal/shell/deployer) reads folders and API
// records, then asks this package what they are.
//
// # Functions
//
//   - Folders: Split "<Name>.<Suffix>" folder names (ParseFolderName)
//   - Remote types: Map platform type strings to item types (ParseRemoteType)
//   - Definitions: Look up the definition file for a type (DefinitionFile)
//   - Filters: Parse user supplied type lists (ParseTypeFilter)
//
// # Usage
//
//	name, itemType, ok := classify.ParseFolderName("Sales.Report")
//	filter, err := classify.ParseTypeFilter([]string{"Report", "SemanticModel"})
//	if filter.Allows(itemType) { ... }
package classify
