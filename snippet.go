// Copyright (c) 2023-2025 D. Bohdan
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	defaultStartMarker = "```rust no_run"
	defaultEndMarker   = "```"
)

type rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

type sourceUnreadableError struct {
	Path string
	Err  error
}

type targetUnreadableError struct {
	Path string
	Err  error
}

type targetUnwritableError struct {
	Path string
	Err  error
}

func (e *sourceUnreadableError) Error() string {
	return fmt.Sprintf("failed to read source %q: %v", e.Path, e.Err)
}

func (e *sourceUnreadableError) Unwrap() error {
	return e.Err
}

func (e *targetUnreadableError) Error() string {
	return fmt.Sprintf("failed to read target %q: %v", e.Path, e.Err)
}

func (e *targetUnreadableError) Unwrap() error {
	return e.Err
}

func (e *targetUnwritableError) Error() string {
	return fmt.Sprintf("failed to write target %q: %v", e.Path, e.Err)
}

func (e *targetUnwritableError) Unwrap() error {
	return e.Err
}

func newRule(pattern, replacement string) (rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return rule{}, fmt.Errorf("invalid rule pattern %q: %w", pattern, err)
	}

	return rule{Pattern: re, Replacement: replacement}, nil
}

func mustRule(pattern, replacement string) rule {
	r, err := newRule(pattern, replacement)
	if err != nil {
		panic(err)
	}

	return r
}

// splitLines splits s into lines that keep their terminators.
func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

// extractExcerpt drops the first skip lines of content and returns the rest
// with line terminators intact.
func extractExcerpt(content string, skip int) string {
	lines := splitLines(content)

	if skip < 0 {
		skip = 0
	}
	if skip >= len(lines) {
		return ""
	}

	return strings.Join(lines[skip:], "")
}

func readExcerpt(path string, skip int) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &sourceUnreadableError{Path: path, Err: err}
	}

	return extractExcerpt(string(content), skip), nil
}

func applyRules(text string, rules []rule) string {
	for _, r := range rules {
		text = r.Pattern.ReplaceAllLiteralString(text, r.Replacement)
	}

	return text
}

// spliceMarkers replaces the text between the first start marker and the next
// end marker with a newline followed by excerpt. The end marker is searched
// for as plain text, so a marker inside the old block content ends the span.
func spliceMarkers(doc, excerpt, startMarker, endMarker string) (string, bool) {
	startPos := strings.Index(doc, startMarker)
	if startPos == -1 {
		return doc, false
	}

	startEnd := startPos + len(startMarker)
	endOffset := strings.Index(doc[startEnd:], endMarker)
	if endOffset == -1 {
		return doc, false
	}
	endPos := startEnd + endOffset

	return doc[:startEnd] + "\n" + excerpt + doc[endPos:], true
}
