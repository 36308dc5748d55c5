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
	"os"
)

const (
	counterSource = "examples/counter.rs"
	readmeTarget  = "README.md"
)

type job struct {
	Name        string
	Description string
	Source      string
	Target      string
	Skip        int
	Rules       []rule
	StartMarker string
	EndMarker   string
}

type syncOptions struct {
	DryRun bool
}

type syncResult struct {
	MarkerFound bool
	Changed     bool
	Old         string
	New         string
}

func builtinJobs() []job {
	return []job{
		{
			Name:        "counter-window",
			Description: "Copy the counter example into the README without the example window setup and the FPS overlay plugin.",
			Source:      counterSource,
			Target:      readmeTarget,
			Skip:        3,
			Rules: []rule{
				mustRule(`\.set\(example_window\(\)\)`, ""),
				mustRule(`FpsOverlayPlugin`, ""),
			},
			StartMarker: defaultStartMarker,
			EndMarker:   defaultEndMarker,
		},
		{
			Name:        "counter-plugins",
			Description: "Copy the counter example into the README with the examples plugin replaced by the default and haalka plugins.",
			Source:      counterSource,
			Target:      readmeTarget,
			Skip:        6,
			Rules: []rule{
				mustRule(`examples_plugin`, "(DefaultPlugins, HaalkaPlugin)"),
			},
			StartMarker: defaultStartMarker,
			EndMarker:   defaultEndMarker,
		},
	}
}

func (j job) validate() error {
	switch {
	case j.Name == "":
		return errors.New("job name is empty")
	case j.Source == "":
		return fmt.Errorf("job %q: source path is empty", j.Name)
	case j.Target == "":
		return fmt.Errorf("job %q: target path is empty", j.Name)
	case j.Skip < 0:
		return fmt.Errorf("job %q: negative skip count: %d", j.Name, j.Skip)
	case j.StartMarker == "":
		return fmt.Errorf("job %q: start marker is empty", j.Name)
	case j.EndMarker == "":
		return fmt.Errorf("job %q: end marker is empty", j.Name)
	}

	for i, r := range j.Rules {
		if r.Pattern == nil {
			return fmt.Errorf("job %q: rule %d has no pattern", j.Name, i+1)
		}
	}

	return nil
}

// selectJobs returns the jobs named in names in that order, or all jobs when
// names is empty.
func selectJobs(jobs []job, names []string) ([]job, error) {
	if len(names) == 0 {
		return jobs, nil
	}

	byName := make(map[string]job, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}

	selected := make([]job, 0, len(names))
	for _, name := range names {
		j, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown job: %q", name)
		}

		selected = append(selected, j)
	}

	return selected, nil
}

func buildExcerpt(j job) (string, error) {
	excerpt, err := readExcerpt(j.Source, j.Skip)
	if err != nil {
		return "", err
	}

	return applyRules(excerpt, j.Rules), nil
}

func readTarget(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &targetUnreadableError{Path: path, Err: err}
	}

	return string(content), nil
}

// spliceTarget splices excerpt into old and writes the result to the job's
// target unless opts.DryRun is set. The write happens even when nothing
// changed.
func spliceTarget(j job, excerpt, old string, opts syncOptions) (syncResult, error) {
	updated, found := spliceMarkers(old, excerpt, j.StartMarker, j.EndMarker)
	result := syncResult{
		MarkerFound: found,
		Changed:     updated != old,
		Old:         old,
		New:         updated,
	}

	if opts.DryRun {
		return result, nil
	}

	if err := os.WriteFile(j.Target, []byte(updated), 0644); err != nil {
		return result, &targetUnwritableError{Path: j.Target, Err: err}
	}

	return result, nil
}

// syncJob splices the job's excerpt into its target as it is on disk.
func syncJob(j job, opts syncOptions) (syncResult, error) {
	excerpt, err := buildExcerpt(j)
	if err != nil {
		return syncResult{}, err
	}

	old, err := readTarget(j.Target)
	if err != nil {
		return syncResult{}, err
	}

	return spliceTarget(j, excerpt, old, opts)
}
