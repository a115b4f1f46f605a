package driven

import (
	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// ConfigStore persists user settings.
// Backed by a TOML file in the user's config directory.
type ConfigStore interface {
	// Load reads settings, applying defaults for anything unset. A
	// missing config file yields the defaults, not an error.
	Load() (domain.Settings, error)

	// Save writes settings back.
	Save(settings domain.Settings) error
}
