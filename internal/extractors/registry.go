package extractors

import (
	"fmt"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps file types to extractors.
type Registry struct {
	extractors []driven.Extractor
}

// NewRegistry creates a registry over the given extractors. Later
// entries win when two claim the same type.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// ForType returns the extractor for fileType, or
// domain.ErrUnsupportedType when none is registered.
func (r *Registry) ForType(fileType domain.FileType) (driven.Extractor, error) {
	for i := len(r.extractors) - 1; i >= 0; i-- {
		if r.extractors[i].Supports(fileType) {
			return r.extractors[i], nil
		}
	}
	return nil, fmt.Errorf("no extractor for %q: %w", fileType, domain.ErrUnsupportedType)
}
