package checks

import (
	"path"
	"strings"

	"github.com/typst/package-check/internal/report"
)

// sizeThreshold is the size in bytes after which a file is considered large.
const sizeThreshold = 1024 * 1024

// filesRule inspects the file set itself: oversized files bloat every
// download of the registry, and font files are forbidden outright because
// fonts must be installed by the user, not vendored.
type filesRule struct{}

func (r *filesRule) ID() string { return "files" }

func (r *filesRule) Evaluate(ctx *Context) []report.Diagnostic {
	var diags []report.Diagnostic

	for _, p := range ctx.Tree.Paths() {
		content, _ := ctx.Tree.File(p)

		if len(content) > sizeThreshold {
			diags = append(diags, report.Warning("files/large", p, report.Span{},
				"this file is %.1f MiB; consider excluding large assets from the published package",
				float64(len(content))/sizeThreshold))
		}

		switch strings.ToLower(path.Ext(p)) {
		case ".otf", ".ttf":
			diags = append(diags, report.Error("files/fonts", p, report.Span{},
				"font files are not allowed; delete them and instruct your users to install the font manually"))
		}
	}

	return diags
}
