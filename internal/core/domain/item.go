package domain

import (
	"errors"
	"fmt"
	"path/filepath"
)

// =============================================================================
// Item Errors
// =============================================================================

var (
	ErrUnknownItemType = errors.New("unknown item type")
	ErrEmptyItemName   = errors.New("item name is required")
	ErrMissingOrigin   = errors.New("item origin is required")
)

// =============================================================================
// Item Type
// =============================================================================

// ItemType is the closed set of deployable item kinds.
type ItemType string

const (
	ItemTypeDataflow      ItemType = "Dataflow"
	ItemTypeLakehouse     ItemType = "Lakehouse"
	ItemTypeReport        ItemType = "Report"
	ItemTypeSemanticModel ItemType = "SemanticModel"
	ItemTypeNotebook      ItemType = "Notebook"
	ItemTypePipeline      ItemType = "Pipeline"
)

var allItemTypes = []ItemType{
	ItemTypeDataflow,
	ItemTypeLakehouse,
	ItemTypeReport,
	ItemTypeSemanticModel,
	ItemTypeNotebook,
	ItemTypePipeline,
}

// AllItemTypes returns every item type in a stable order.
func AllItemTypes() []ItemType {
	out := make([]ItemType, len(allItemTypes))
	copy(out, allItemTypes)
	return out
}

// ParseItemType matches s case-sensitively against the item type names.
func ParseItemType(s string) (ItemType, bool) {
	for _, t := range allItemTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	_, ok := ParseItemType(string(t))
	return ok
}

func (t ItemType) String() string {
	return string(t)
}

// =============================================================================
// Origin
// =============================================================================

// OriginKind tells the two origin variants apart.
type OriginKind string

const (
	OriginRemote OriginKind = "remote"
	OriginLocal  OriginKind = "local"
)

// Origin is where an item was enumerated from. It is either a RemoteRef or a
// LocalRef; no other implementations exist.
type Origin interface {
	Kind() OriginKind
	String() string
	isOrigin()
}

// RemoteRef points at an item living in a remote workspace.
type RemoteRef struct {
	WorkspaceID string `json:"workspace_id"`
	ItemID      string `json:"item_id"`
}

func (RemoteRef) Kind() OriginKind { return OriginRemote }
func (RemoteRef) isOrigin()        {}

func (r RemoteRef) String() string {
	return fmt.Sprintf("workspace/%s/item/%s", r.WorkspaceID, r.ItemID)
}

// LocalRef points at an item folder on disk.
type LocalRef struct {
	Path string `json:"path"`
}

func (LocalRef) Kind() OriginKind { return OriginLocal }
func (LocalRef) isOrigin()        {}

func (r LocalRef) String() string {
	return r.Path
}

// NewLocalRef builds a LocalRef with an absolute path.
func NewLocalRef(path string) (LocalRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return LocalRef{}, fmt.Errorf("resolve path %q: %w", path, err)
	}
	return LocalRef{Path: abs}, nil
}

// =============================================================================
// Item
// =============================================================================

// Item is the unit of deployment. Names are unique per type within a source,
// not globally.
type Item struct {
	Name   string
	Type   ItemType
	Origin Origin
}

// NewItem validates and builds an Item. An item with an unresolvable type is
// never constructed.
func NewItem(name string, t ItemType, origin Origin) (Item, error) {
	if name == "" {
		return Item{}, ErrEmptyItemName
	}
	if !t.Valid() {
		return Item{}, fmt.Errorf("%w: %q", ErrUnknownItemType, string(t))
	}
	if origin == nil {
		return Item{}, ErrMissingOrigin
	}
	return Item{Name: name, Type: t, Origin: origin}, nil
}

// String renders the item as "Name (Type)".
func (i Item) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.Type)
}
