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
	"io/fs"
	"log"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	defaultConfigFile = "snipsync.star"
	starlarkVarJobs   = "_jobs"
)

func StarlarkRule(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, replacement string

	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "replacement?", &replacement); err != nil {
		return nil, err
	}

	if _, err := newRule(pattern, replacement); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	return starlark.Tuple{starlark.String(pattern), starlark.String(replacement)}, nil
}

func StarlarkSync(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	j := job{
		StartMarker: defaultStartMarker,
		EndMarker:   defaultEndMarker,
	}
	var rules starlark.Iterable

	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &j.Name,
		"source", &j.Source,
		"target", &j.Target,
		"skip?", &j.Skip,
		"rules?", &rules,
		"start_marker?", &j.StartMarker,
		"end_marker?", &j.EndMarker,
		"description?", &j.Description,
	); err != nil {
		return nil, err
	}

	if rules != nil {
		iter := rules.Iterate()
		defer iter.Done()

		var v starlark.Value
		for i := 1; iter.Next(&v); i++ {
			r, err := ruleFromValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s: rule %d: %w", b.Name(), i, err)
			}

			j.Rules = append(j.Rules, r)
		}
	}

	if err := j.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	jobs, ok := thread.Local(starlarkVarJobs).(*[]job)
	if !ok {
		return nil, fmt.Errorf("%s: called outside of a config file", b.Name())
	}

	for _, existing := range *jobs {
		if existing.Name == j.Name {
			return nil, fmt.Errorf("%s: duplicate job name %q", b.Name(), j.Name)
		}
	}
	*jobs = append(*jobs, j)

	return starlark.None, nil
}

func StarlarkInspect(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prefix starlark.String
	var value starlark.Value

	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "prefix?", &prefix); err != nil {
		return nil, err
	}

	prefixStr := ""
	if prefix.Len() > 0 {
		prefixStr = prefix.GoString()
	}

	log.Printf("inspect: %s%v\n", prefixStr, value)

	return value, nil
}

// ruleFromValue accepts what rule() returns or any two-element sequence of
// strings.
func ruleFromValue(v starlark.Value) (rule, error) {
	if _, isString := v.(starlark.String); isString {
		return rule{}, fmt.Errorf("rule must be a (pattern, replacement) pair, got string")
	}

	seq, ok := v.(starlark.Indexable)
	if !ok || seq.Len() != 2 {
		return rule{}, fmt.Errorf("rule must be a (pattern, replacement) pair, got %s", v.Type())
	}

	pattern, ok := starlark.AsString(seq.Index(0))
	if !ok {
		return rule{}, fmt.Errorf("rule pattern must be a string, got %s", seq.Index(0).Type())
	}

	replacement, ok := starlark.AsString(seq.Index(1))
	if !ok {
		return rule{}, fmt.Errorf("rule replacement must be a string, got %s", seq.Index(1).Type())
	}

	return newRule(pattern, replacement)
}

// evalConfig runs a Starlark job file and returns the jobs it registers with
// sync() in the order they were registered.
func evalConfig(filename string, src interface{}) ([]job, error) {
	var jobs []job

	thread := &starlark.Thread{
		Name: "config",
		Print: func(_ *starlark.Thread, msg string) {
			log.Printf("%s", msg)
		},
	}
	thread.SetLocal(starlarkVarJobs, &jobs)

	env := starlark.StringDict{
		"inspect": starlark.NewBuiltin("inspect", StarlarkInspect),
		"rule":    starlark.NewBuiltin("rule", StarlarkRule),
		"sync":    starlark.NewBuiltin("sync", StarlarkSync),

		"default_start_marker": starlark.String(defaultStartMarker),
		"default_end_marker":   starlark.String(defaultEndMarker),
	}

	if _, err := starlark.ExecFileOptions(syntax.LegacyFileOptions(), thread, filename, src, env); err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("config %q: %s", filename, evalErr.Backtrace())
		}

		return nil, fmt.Errorf("config %q: %w", filename, err)
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("config %q defines no jobs", filename)
	}

	return jobs, nil
}

// loadJobs reads the config file at path. When the file is the implicit
// default and does not exist, the built-in jobs are used instead.
func loadJobs(path string, explicit bool) ([]job, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return builtinJobs(), nil
		}

		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	return evalConfig(path, src)
}
