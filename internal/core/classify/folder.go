package classify

import (
	"strings"

	"github.com/artpar/promoter/internal/core/domain"
)

// ParseFolderName splits an item folder name into its item name and type.
//
// Only the final dot segment is treated as the type suffix, so "A.B.Report"
// yields name "A.B" and type Report. Suffixes match case-sensitively. Folders
// without a dot, with an empty name part, or with an unknown suffix are not
// items.
//
// Example:
//
//	ParseFolderName("Alpha.Report")        // "Alpha", Report, true
//	ParseFolderName("Weird_Name_NoSuffix") // "", "", false
func ParseFolderName(folder string) (string, domain.ItemType, bool) {
	idx := strings.LastIndex(folder, ".")
	if idx <= 0 || idx == len(folder)-1 {
		return "", "", false
	}

	itemType, ok := domain.ParseItemType(folder[idx+1:])
	if !ok {
		return "", "", false
	}
	return folder[:idx], itemType, true
}

// FolderName is the inverse of ParseFolderName.
func FolderName(name string, t domain.ItemType) string {
	return name + "." + string(t)
}
