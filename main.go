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
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"
	tsize "github.com/kopoli/go-terminal-size"
	"github.com/mitchellh/go-wordwrap"
)

const (
	defaultListWidth = 80
	exitCodeUsage    = 2
	maxVerboseLevel  = 2
	minListWidth     = 20
	version          = "0.1.0"
)

type runConfig struct {
	Jobs    []job
	Check   bool
	Diff    bool
	Verbose int
}

type ruleConfig struct {
	Pattern     string
	Replacement string
}

type jobConfig struct {
	Name        string
	Source      string
	Target      string
	Skip        int
	Rules       []ruleConfig
	StartMarker string
	EndMarker   string
}

type cli struct {
	Jobs    []string         `arg:"" optional:"" name:"job" help:"jobs to run (all jobs if none are given)"`
	Version kong.VersionFlag `short:"V" help:"print version number and exit"`
	Chdir   string           `short:"C" type:"existingdir" placeholder:"DIR" help:"change to directory before doing anything"`
	Check   bool             `help:"do not write; exit with an error if a target is out of date"`
	Color   string           `default:"auto" enum:"auto,always,never" help:"colorize diff output (auto, always, never)"`
	Config  string           `short:"c" placeholder:"FILE" help:"Starlark job file (default ${default_config}; built-in jobs if it does not exist)"`
	Diff    bool             `help:"print a diff of each change"`
	List    bool             `short:"l" help:"list jobs and exit"`
	Verbose int              `short:"v" type:"counter" help:"increase verbosity"`
}

type elapsedTimeWriter struct {
	startTime time.Time
}

type staleTargetsError struct {
	Targets []string
}

type targetState struct {
	Original string
	Current  string
}

type usageError struct {
	Err error
}

func (w *elapsedTimeWriter) Write(bytes []byte) (int, error) {
	elapsed := time.Since(w.startTime)

	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60
	deciseconds := elapsed.Milliseconds() % 1000 / 100

	return fmt.Fprintf(os.Stderr, "snipsync [%02d:%02d:%02d.%01d]: %s", hours, minutes, seconds, deciseconds, string(bytes))
}

func (e *staleTargetsError) Error() string {
	return fmt.Sprintf("out of date: %s", strings.Join(e.Targets, ", "))
}

func (e *usageError) Error() string {
	return e.Err.Error()
}

func (e *usageError) Unwrap() error {
	return e.Err
}

// exitWithUsageCode is kong's exit hook. kong only exits with a non-zero
// code on usage errors.
func exitWithUsageCode(code int) {
	if code != 0 {
		code = exitCodeUsage
	}

	os.Exit(code)
}

func (j job) config() jobConfig {
	rules := make([]ruleConfig, 0, len(j.Rules))
	for _, r := range j.Rules {
		rules = append(rules, ruleConfig{Pattern: r.Pattern.String(), Replacement: r.Replacement})
	}

	return jobConfig{
		Name:        j.Name,
		Source:      j.Source,
		Target:      j.Target,
		Skip:        j.Skip,
		Rules:       rules,
		StartMarker: j.StartMarker,
		EndMarker:   j.EndMarker,
	}
}

func terminalWidth() int {
	size, err := tsize.GetSize()
	if err != nil || size.Width < minListWidth {
		return defaultListWidth
	}

	return size.Width
}

func listJobs(w io.Writer, jobs []job, width int) {
	for _, j := range jobs {
		fmt.Fprintf(w, "%s (%s -> %s)\n", j.Name, j.Source, j.Target)

		if j.Description == "" {
			continue
		}

		wrapped := wordwrap.WrapString(j.Description, uint(width-4))
		for _, line := range strings.Split(wrapped, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// runJobs runs the jobs in order and stops at the first fatal error. Jobs
// that share a target see the content left by the jobs before them. Diffs
// go to stdout, one per target, against the target as it was before the run.
func runJobs(config runConfig, stdout io.Writer) (int, error) {
	targets := make(map[string]*targetState)
	var order []string

	for _, j := range config.Jobs {
		if config.Verbose >= 2 {
			log.Printf("job %s", repr.String(j.config(), repr.Indent("  ")))
		}

		excerpt, err := buildExcerpt(j)
		if err != nil {
			return 1, fmt.Errorf("job %q: %w", j.Name, err)
		}

		key := filepath.Clean(j.Target)
		state, ok := targets[key]
		if !ok {
			content, err := readTarget(j.Target)
			if err != nil {
				return 1, fmt.Errorf("job %q: %w", j.Name, err)
			}

			state = &targetState{Original: content, Current: content}
			targets[key] = state
			order = append(order, key)
		}

		result, err := spliceTarget(j, excerpt, state.Current, syncOptions{DryRun: config.Check})
		if err != nil {
			return 1, fmt.Errorf("job %q: %w", j.Name, err)
		}
		state.Current = result.New

		if !result.MarkerFound {
			log.Printf("job %q: markers not found in %q; target left unchanged", j.Name, j.Target)
		} else if config.Verbose >= 2 {
			log.Printf("job %q: spliced excerpt into %q", j.Name, j.Target)
		}
	}

	var stale []string

	for _, target := range order {
		state := targets[target]
		changed := state.Current != state.Original

		if config.Diff {
			writeDiff(stdout, target, state.Original, state.Current)
		}

		if config.Check && changed {
			stale = append(stale, target)
		}

		if config.Verbose >= 1 {
			switch {
			case !changed:
				log.Printf("%q is up to date", target)
			case config.Check:
				log.Printf("%q would be updated", target)
			default:
				log.Printf("updated %q", target)
			}
		}
	}

	if len(stale) > 0 {
		return 1, &staleTargetsError{Targets: stale}
	}

	return 0, nil
}

// run loads and selects jobs and runs them. Unknown job names are reported as
// a *usageError.
func run(cliConfig cli, stdout io.Writer) (int, error) {
	configPath := cliConfig.Config
	explicitConfig := configPath != ""
	if !explicitConfig {
		configPath = defaultConfigFile
	}

	allJobs, err := loadJobs(configPath, explicitConfig)
	if err != nil {
		return 1, err
	}

	if cliConfig.List {
		listJobs(stdout, allJobs, terminalWidth())
		return 0, nil
	}

	jobs, err := selectJobs(allJobs, cliConfig.Jobs)
	if err != nil {
		return exitCodeUsage, &usageError{Err: err}
	}

	return runJobs(runConfig{
		Jobs:    jobs,
		Check:   cliConfig.Check,
		Diff:    cliConfig.Diff,
		Verbose: cliConfig.Verbose,
	}, stdout)
}

func main() {
	var cliConfig cli
	kongCtx := kong.Parse(&cliConfig,
		kong.Name("snipsync"),
		kong.Description("Copy excerpts of example source files into code blocks in documentation."),
		kong.UsageOnError(),
		kong.Exit(exitWithUsageCode),
		kong.Vars{
			"default_config": defaultConfigFile,
			"version":        version,
		},
	)

	log.SetOutput(&elapsedTimeWriter{startTime: time.Now()})
	log.SetFlags(0)

	if cliConfig.Verbose > maxVerboseLevel {
		kongCtx.Fatalf("up to %d verbose flags is allowed", maxVerboseLevel)
	}

	if cliConfig.Chdir != "" {
		if err := os.Chdir(cliConfig.Chdir); err != nil {
			kongCtx.Fatalf("failed to change directory: %v", err)
		}
	}

	configureColor(cliConfig.Color, os.Stdout.Fd())

	exitCode, err := run(cliConfig, os.Stdout)
	if err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			kongCtx.Fatalf("%v", usageErr.Err)
		}

		log.Printf("%v", err)
	}

	os.Exit(exitCode)
}
