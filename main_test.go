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
	"bytes"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/alecthomas/repr"
	"github.com/fatih/color"
)

func TestRunJobs(t *testing.T) {
	j := fixtureJob(t, "counter-plugins")

	var stdout bytes.Buffer
	code, err := runJobs(runConfig{Jobs: []job{j}, Verbose: 1}, &stdout)
	if err != nil || code != 0 {
		t.Fatalf("Expected success, got code %d and %v", code, err)
	}

	if !strings.Contains(readFile(t, j.Target), "(DefaultPlugins, HaalkaPlugin)") {
		t.Error("Expected README to contain the substituted plugins")
	}

	if stdout.Len() != 0 {
		t.Errorf("Expected no stdout without --diff, got %q", stdout.String())
	}
}

func TestRunJobsInOrder(t *testing.T) {
	window := fixtureJob(t, "counter-window")
	plugins := fixtureJob(t, "counter-plugins")
	plugins.Source = window.Source
	plugins.Target = window.Target

	code, err := runJobs(runConfig{Jobs: []job{window, plugins}}, &bytes.Buffer{})
	if err != nil || code != 0 {
		t.Fatalf("Expected success, got code %d and %v", code, err)
	}

	readme := readFile(t, window.Target)
	if !strings.Contains(readme, "```rust no_run\nuse bevy::prelude::*;\n") {
		t.Errorf("Expected the last job to win, got:\n%s", readme)
	}
}

func TestRunJobsCheck(t *testing.T) {
	j := fixtureJob(t, "counter-plugins")
	before := readFile(t, j.Target)

	code, err := runJobs(runConfig{Jobs: []job{j}, Check: true}, &bytes.Buffer{})
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}

	var staleErr *staleTargetsError
	if !errors.As(err, &staleErr) || len(staleErr.Targets) != 1 || staleErr.Targets[0] != j.Target {
		t.Errorf("Expected staleTargetsError for %q, got %v", j.Target, err)
	}

	if readFile(t, j.Target) != before {
		t.Error("Expected --check not to write the target")
	}

	if _, err := runJobs(runConfig{Jobs: []job{j}}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	code, err = runJobs(runConfig{Jobs: []job{j}, Check: true}, &bytes.Buffer{})
	if err != nil || code != 0 {
		t.Errorf("Expected up-to-date target, got code %d and %v", code, err)
	}
}

func TestRunJobsDiff(t *testing.T) {
	color.NoColor = true
	j := fixtureJob(t, "counter-plugins")

	var stdout bytes.Buffer
	if _, err := runJobs(runConfig{Jobs: []job{j}, Check: true, Diff: true}, &stdout); err == nil {
		t.Error("Expected stale target error")
	}

	out := stdout.String()
	if !strings.Contains(out, "-fn main() {}\n") {
		t.Errorf("Expected removed line in diff, got:\n%s", out)
	}

	if !strings.Contains(out, "+        .add_plugins((DefaultPlugins, HaalkaPlugin))\n") {
		t.Errorf("Expected added line in diff, got:\n%s", out)
	}
}

func TestRunJobsStopsOnError(t *testing.T) {
	missing := fixtureJob(t, "counter-window")
	missing.Source = missing.Source + ".missing"
	next := fixtureJob(t, "counter-plugins")
	before := readFile(t, next.Target)

	code, err := runJobs(runConfig{Jobs: []job{missing, next}}, &bytes.Buffer{})
	if code != 1 || err == nil {
		t.Fatalf("Expected failure, got code %d and %v", code, err)
	}

	if !strings.Contains(err.Error(), `job "counter-window"`) {
		t.Errorf("Expected job name in error, got %v", err)
	}

	if readFile(t, next.Target) != before {
		t.Error("Expected later jobs not to run")
	}
}

func TestListJobs(t *testing.T) {
	var out bytes.Buffer
	listJobs(&out, builtinJobs(), 40)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if lines[0] != "counter-window (examples/counter.rs -> README.md)" {
		t.Errorf("Unexpected first line: %q", lines[0])
	}

	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "counter-") {
			continue
		}

		if !strings.HasPrefix(line, "    ") || len(line) > 40 {
			t.Errorf("Expected an indented line of at most 40 characters, got %q", line)
		}
	}
}

func TestJobConfigRepr(t *testing.T) {
	s := repr.String(builtinJobs()[1].config(), repr.Indent("  "))

	if matched, _ := regexp.MatchString(`main\.jobConfig{\n`, s); !matched {
		t.Errorf(`Expected 'main\.jobConfig{\n' in %q`, s)
	}

	if !strings.Contains(s, "examples_plugin") {
		t.Errorf("Expected rule pattern in %q", s)
	}
}

func TestErrorMessages(t *testing.T) {
	errs := []error{
		&sourceUnreadableError{Path: "a.rs", Err: fs.ErrNotExist},
		&targetUnreadableError{Path: "README.md", Err: fs.ErrNotExist},
		&targetUnwritableError{Path: "README.md", Err: fs.ErrPermission},
	}

	for _, err := range errs {
		if !strings.Contains(err.Error(), `"`) {
			t.Errorf("Expected quoted path in %q", err.Error())
		}

		if errors.Unwrap(err) == nil {
			t.Errorf("Expected %T to wrap its cause", err)
		}
	}

	if !errors.Is(errs[2], fs.ErrPermission) {
		t.Error("Expected targetUnwritableError to match fs.ErrPermission")
	}
}

func TestRunJobsCheckAfterSharedTargetRun(t *testing.T) {
	color.NoColor = true
	window := fixtureJob(t, "counter-window")
	plugins := fixtureJob(t, "counter-plugins")
	plugins.Source = window.Source
	plugins.Target = window.Target
	jobs := []job{window, plugins}

	for i := 0; i < 2; i++ {
		if code, err := runJobs(runConfig{Jobs: jobs}, &bytes.Buffer{}); err != nil || code != 0 {
			t.Fatalf("Run %d: expected success, got code %d and %v", i+1, code, err)
		}
	}
	after := readFile(t, window.Target)

	var stdout bytes.Buffer
	code, err := runJobs(runConfig{Jobs: jobs, Check: true, Diff: true}, &stdout)
	if err != nil || code != 0 {
		t.Errorf("Expected up-to-date target, got code %d and %v", code, err)
	}

	if stdout.Len() != 0 {
		t.Errorf("Expected no diff, got:\n%s", stdout.String())
	}

	if readFile(t, window.Target) != after {
		t.Error("Expected --check not to write the target")
	}
}

func TestRunJobsSharedTargetDiff(t *testing.T) {
	color.NoColor = true
	window := fixtureJob(t, "counter-window")
	plugins := fixtureJob(t, "counter-plugins")
	plugins.Source = window.Source
	plugins.Target = window.Target

	var stdout bytes.Buffer
	code, err := runJobs(runConfig{Jobs: []job{window, plugins}, Check: true, Diff: true}, &stdout)
	if code != 1 || err == nil {
		t.Fatalf("Expected stale target, got code %d and %v", code, err)
	}

	out := stdout.String()
	if count := strings.Count(out, "--- "); count != 1 {
		t.Errorf("Expected 1 diff for the shared target, got %d:\n%s", count, out)
	}

	if strings.Contains(out, "+mod utils;\n") {
		t.Errorf("Expected the last job's excerpt only, got:\n%s", out)
	}

	if !strings.Contains(out, "+        .add_plugins((DefaultPlugins, HaalkaPlugin))\n") {
		t.Errorf("Expected added line in diff, got:\n%s", out)
	}
}

func TestRunUnknownJob(t *testing.T) {
	code, err := run(cli{Config: "test/snipsync.star", Jobs: []string{"no-such-job"}}, &bytes.Buffer{})

	if code != exitCodeUsage {
		t.Errorf("Expected exit code %d, got %d", exitCodeUsage, code)
	}

	var usageErr *usageError
	if !errors.As(err, &usageErr) || !strings.Contains(err.Error(), "no-such-job") {
		t.Errorf("Expected usageError naming the job, got %v", err)
	}
}

func TestRunList(t *testing.T) {
	var stdout bytes.Buffer
	code, err := run(cli{Config: "test/snipsync.star", List: true}, &stdout)
	if err != nil || code != 0 {
		t.Fatalf("Expected success, got code %d and %v", code, err)
	}

	if !strings.HasPrefix(stdout.String(), "counter (counter.rs -> README.md)\n") {
		t.Errorf("Unexpected job list: %q", stdout.String())
	}
}

func TestRunMissingConfig(t *testing.T) {
	code, err := run(cli{Config: "test/missing.star"}, &bytes.Buffer{})

	var usageErr *usageError
	if code != 1 || err == nil || errors.As(err, &usageErr) {
		t.Errorf("Expected exit code 1 and a config error, got code %d and %v", code, err)
	}
}
