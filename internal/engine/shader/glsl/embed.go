// Package glsl holds the built-in GLSL 4.10 sources.
package glsl

import "embed"

// FS contains every built-in shader stage, addressed by file name.
//
//go:embed *.vert *.frag
var FS embed.FS
