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
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

const (
	diffContextLines = 2
	noNewlineMessage = "\\ No newline at end of file\n"
)

var (
	diffHeader = color.New(color.Bold)
	diffHunk   = color.New(color.FgCyan)
	diffInsert = color.New(color.FgGreen)
	diffDelete = color.New(color.FgRed)
)

// configureColor sets the color mode for diff output written to fd.
func configureColor(mode string, fd uintptr) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = os.Getenv("NO_COLOR") != "" ||
			!(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
	}
}

// writeLine prints a prefixed line, uncolored when c is nil.
func writeLine(w io.Writer, c *color.Color, prefix, line string) {
	missingNewline := !strings.HasSuffix(line, "\n")
	if missingNewline {
		line += "\n"
	}

	if c == nil {
		fmt.Fprint(w, prefix+line)
	} else {
		c.Fprint(w, prefix+line)
	}

	if missingNewline {
		fmt.Fprint(w, noNewlineMessage)
	}
}

// writeDiff prints a line diff between before and after with a few lines of
// context around each change. Nothing is printed when they are equal.
func writeDiff(w io.Writer, path, before, after string) {
	if before == after {
		return
	}

	dmp := diffpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	diffHeader.Fprintf(w, "--- %s\n", path)
	diffHeader.Fprintf(w, "+++ %s\n", path)

	for i, d := range diffs {
		lines := splitLines(d.Text)

		switch d.Type {
		case diffpatch.DiffDelete:
			for _, line := range lines {
				writeLine(w, diffDelete, "-", line)
			}

		case diffpatch.DiffInsert:
			for _, line := range lines {
				writeLine(w, diffInsert, "+", line)
			}

		case diffpatch.DiffEqual:
			first := i == 0
			last := i == len(diffs)-1

			if !first && !last && len(lines) <= 2*diffContextLines {
				for _, line := range lines {
					writeLine(w, nil, " ", line)
				}
				continue
			}

			if !first {
				n := min(diffContextLines, len(lines))
				for _, line := range lines[:n] {
					writeLine(w, nil, " ", line)
				}
				lines = lines[n:]
			}

			if !last {
				n := min(diffContextLines, len(lines))
				diffHunk.Fprintln(w, "@@")
				for _, line := range lines[len(lines)-n:] {
					writeLine(w, nil, " ", line)
				}
			}
		}
	}
}
