// Package web embeds the HTML served by the local UI.
package web

import "embed"

//go:embed templates/*.html
var TemplateFiles embed.FS
