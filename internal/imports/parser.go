// Package imports parses Typst import directives and resolves them into a
// directed file dependency graph, without ever evaluating package code.
package imports

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// DirectiveKind distinguishes the two reference forms an import can take.
type DirectiveKind int

const (
	// KindRelative is a path reference like `#import "utils.typ"`.
	KindRelative DirectiveKind = iota
	// KindPackage is a registry reference like `#import "@preview/cetz:0.2.0"`.
	KindPackage
)

// Directive is one `#import` or `#include` statement found in a source file.
type Directive struct {
	Kind        DirectiveKind
	Include     bool   // true for #include, false for #import
	Target      string // the quoted string, verbatim
	Line        int    // 1-indexed
	StartColumn int    // 1-indexed, position of the `#`
	EndColumn   int    // 1-indexed, one past the closing quote
}

var directivePattern = regexp.MustCompile(`#(import|include)\s*"([^"]*)"`)

// Parse scans a Typst source file for import and include directives. Only the
// directive form with a string literal target is considered; dynamic imports
// cannot be resolved statically and are ignored.
func Parse(content []byte) []Directive {
	var directives []Directive

	inBlockComment := false
	lineNo := 0
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line, blockState := stripComments(scanner.Text(), inBlockComment)
		inBlockComment = blockState

		for _, match := range directivePattern.FindAllStringSubmatchIndex(line, -1) {
			keyword := line[match[2]:match[3]]
			target := line[match[4]:match[5]]
			kind := KindRelative
			if strings.HasPrefix(target, "@") {
				kind = KindPackage
			}
			directives = append(directives, Directive{
				Kind:        kind,
				Include:     keyword == "include",
				Target:      target,
				Line:        lineNo,
				StartColumn: match[0] + 1,
				EndColumn:   match[1] + 1,
			})
		}
	}

	return directives
}

// stripComments blanks out commented regions of a line so the directive
// pattern cannot match inside them. Comment markers inside string literals
// are left alone. Returns the cleaned line and whether a block comment is
// still open at the end of the line.
func stripComments(line string, inBlock bool) (string, bool) {
	out := []rune(line)
	runes := []rune(line)
	inString := false

	for i := 0; i < len(runes); i++ {
		switch {
		case inBlock:
			if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				inBlock = false
			} else {
				out[i] = ' '
			}
		case inString:
			if runes[i] == '\\' && i+1 < len(runes) {
				i++
			} else if runes[i] == '"' {
				inString = false
			}
		case runes[i] == '"':
			inString = true
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for j := i; j < len(runes); j++ {
				out[j] = ' '
			}
			return string(out), false
		case runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			i++
			inBlock = true
		}
	}

	return string(out), inBlock
}
