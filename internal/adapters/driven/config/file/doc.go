// Package file provides a file-based implementation of the ConfigStore
// driven port. Settings are persisted as TOML in the recall config
// directory, ~/.recall/config.toml by default.
package file
