// Package migrations holds the goose migrations of the larder schema.
package migrations

import "embed"

// FS exposes the migration sources so goose can discover them without a checkout on disk.
//
//go:embed *.go
var FS embed.FS
