// Package scripts embeds the built-in seed scripts.
package scripts

import "embed"

// FS holds the built-in seed scripts under seeds/.
//
//go:embed seeds/*.risor
var FS embed.FS
