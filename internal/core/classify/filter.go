package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/promoter/internal/core/domain"
	"github.com/hashicorp/go-multierror"
)

// TypeFilter is an optional set of item types. The zero value (nil) allows
// every type.
type TypeFilter map[domain.ItemType]struct{}

// NewTypeFilter builds a filter from known types. No types means no filter.
func NewTypeFilter(types ...domain.ItemType) TypeFilter {
	if len(types) == 0 {
		return nil
	}
	f := make(TypeFilter, len(types))
	for _, t := range types {
		f[t] = struct{}{}
	}
	return f
}

// ParseTypeFilter parses type names such as "Report" or "Report,Dataflow".
// Empty input returns a nil filter. Every unknown name is reported.
func ParseTypeFilter(names []string) (TypeFilter, error) {
	var (
		types  []domain.ItemType
		result *multierror.Error
	)
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			t, ok := domain.ParseItemType(name)
			if !ok {
				result = multierror.Append(result, fmt.Errorf("%w: %q", domain.ErrUnknownItemType, name))
				continue
			}
			types = append(types, t)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return NewTypeFilter(types...), nil
}

// Active reports whether the filter restricts anything.
func (f TypeFilter) Active() bool {
	return len(f) > 0
}

// Allows reports whether items of type t pass the filter.
func (f TypeFilter) Allows(t domain.ItemType) bool {
	if !f.Active() {
		return true
	}
	_, ok := f[t]
	return ok
}

// Types returns the filtered types sorted by name.
func (f TypeFilter) Types() []domain.ItemType {
	out := make([]domain.ItemType, 0, len(f))
	for t := range f {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (f TypeFilter) String() string {
	if !f.Active() {
		return "all"
	}
	names := make([]string, 0, len(f))
	for _, t := range f.Types() {
		names = append(names, string(t))
	}
	return strings.Join(names, ",")
}
