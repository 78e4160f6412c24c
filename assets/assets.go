// Package assets embeds the stylesheet and images served under /assets.
package assets

import "embed"

//go:embed css static
var Assets embed.FS
