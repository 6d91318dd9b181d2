package checks

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/typst/package-check/internal/report"
)

// namingRule warns when public bindings or function parameters are not
// kebab-case. Names starting with an underscore count as private, and
// SCREAMING_SNAKE_CASE or SCREAMING-KEBAB-CASE constants are accepted.
type namingRule struct{}

func (r *namingRule) ID() string { return "naming" }

var letPattern = regexp.MustCompile(`#let\s+([A-Za-z_][A-Za-z0-9_-]*)`)

func (r *namingRule) Evaluate(ctx *Context) []report.Diagnostic {
	if ctx.Graph == nil {
		return nil
	}

	var diags []report.Diagnostic
	for _, node := range ctx.Graph.Nodes {
		content, ok := ctx.Tree.File(node.Path)
		if !ok {
			continue
		}
		diags = append(diags, checkBindings(node.Path, string(content))...)
	}
	return diags
}

func checkBindings(path, content string) []report.Diagnostic {
	var diags []report.Diagnostic
	lines := lineStarts(content)

	for _, match := range letPattern.FindAllStringSubmatchIndex(content, -1) {
		nameStart, nameEnd := match[2], match[3]
		name := content[nameStart:nameEnd]

		if !strings.HasPrefix(name, "_") && !isScreaming(name) && !isKebab(name) {
			line, col := position(lines, nameStart)
			diags = append(diags, report.Warning("naming/kebab-case", path,
				report.Line(line, col, col+len(name)),
				"this value seems to be public; kebab-case names are recommended"))
		}

		// If the binding is a function, its named parameters are part of the
		// public surface too.
		for _, param := range parameters(content, nameEnd) {
			if strings.HasPrefix(param.name, "_") || isKebab(param.name) {
				continue
			}
			line, col := position(lines, param.offset)
			diags = append(diags, report.Warning("naming/kebab-case", path,
				report.Line(line, col, col+len(param.name)),
				"this argument seems to be part of a public function; kebab-case names are recommended"))
		}
	}

	return diags
}

type param struct {
	name   string
	offset int
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*`)

// parameters extracts the parameter names of a function binding, i.e. the
// identifiers directly inside the parenthesis group that immediately follows
// the binding name. Returns nil when the binding is a plain value.
func parameters(content string, nameEnd int) []param {
	i := nameEnd
	for i < len(content) && (content[i] == ' ' || content[i] == '\t') {
		i++
	}
	if i >= len(content) || content[i] != '(' {
		return nil
	}

	var params []param
	depth := 0
	expectName := true
	for ; i < len(content); i++ {
		switch content[i] {
		case '(':
			depth++
			if depth > 1 {
				expectName = false
			}
		case ')':
			depth--
			if depth == 0 {
				return params
			}
		case ',':
			if depth == 1 {
				expectName = true
			}
		case '"':
			// Skip string literals (default values).
			for i++; i < len(content) && content[i] != '"'; i++ {
				if content[i] == '\\' {
					i++
				}
			}
		case ':', '.':
			expectName = false
		default:
			if expectName && depth == 1 && !unicode.IsSpace(rune(content[i])) {
				if name := identPattern.FindString(content[i:]); name != "" {
					params = append(params, param{name: name, offset: i})
					i += len(name) - 1
				}
				expectName = false
			}
		}
	}
	return params
}

// isKebab accepts lowercase letters, digits and single hyphens.
func isKebab(name string) bool {
	for _, r := range name {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

// isScreaming accepts SCREAMING_SNAKE_CASE and SCREAMING-KEBAB-CASE, the
// two accepted constant spellings.
func isScreaming(name string) bool {
	hasUpper := false
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r) || r == '_' || r == '-':
		default:
			return false
		}
	}
	return hasUpper
}

// lineStarts returns the byte offset of each line start, for offset-to-span
// conversion.
func lineStarts(content string) []int {
	starts := []int{0}
	for i, r := range content {
		if r == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// position converts a byte offset into a 1-indexed line and column.
func position(starts []int, offset int) (line, col int) {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	return i + 1, offset - starts[i] + 1
}
