// Package assets embeds the dashboard's static files.
package assets

import "embed"

//go:embed css
var Assets embed.FS
