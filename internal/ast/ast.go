// Copyright (c) 2025 The cush Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package ast is the parser contract's realization: it turns one raw
// command line into a command line of pipelines. This is the "external
// collaborator" spec.md treats as a black box (lexing/parsing is out of
// scope for the job-control core); it lives here only so the rest of the
// shell has something concrete to launch.
package ast

import (
	"fmt"
	"strings"

	"github.com/canonical/x-go/strutil/shlex"
)

// Command is one stage of a pipeline.
type Command struct {
	Argv []string
	// DupStderrToStdout duplicates this stage's stdout onto its stderr.
	DupStderrToStdout bool
}

// Pipeline is one job submitted as a unit: an ordered list of commands
// connected by pipes, plus the redirections and background flag that apply
// to the pipeline as a whole.
type Pipeline struct {
	Commands []*Command

	IoredInput  string // empty if absent
	IoredOutput string // empty if absent
	AppendOutput bool

	Background bool
}

// CommandLine is an ordered list of pipelines, the unit the REPL reads and
// dispatches one line at a time.
type CommandLine struct {
	Pipelines []*Pipeline
}

// String renders a command's argv back into shell-quoted text.
func (c *Command) String() string {
	s := shlex.Join(c.Argv)
	if c.DupStderrToStdout {
		s += " 2>&1"
	}
	return s
}

// String renders a pipeline back into shell text, suitable for "jobs" and
// for round-tripping back through Parse.
func (p *Pipeline) String() string {
	parts := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		parts[i] = c.String()
	}
	s := strings.Join(parts, " | ")
	if p.IoredInput != "" {
		s += " < " + p.IoredInput
	}
	if p.IoredOutput != "" {
		if p.AppendOutput {
			s += " >> " + p.IoredOutput
		} else {
			s += " > " + p.IoredOutput
		}
	}
	if p.Background {
		s += " &"
	}
	return s
}

// Parse tokenizes and parses one raw command line into a CommandLine. An
// empty or whitespace-only line parses to a CommandLine with no pipelines
// (the REPL's cue to just loop around).
func Parse(line string) (*CommandLine, error) {
	if strings.TrimSpace(line) == "" {
		return &CommandLine{}, nil
	}

	words, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("cannot tokenize command line: %w", err)
	}
	if len(words) == 0 {
		return &CommandLine{}, nil
	}

	pipeline, err := parsePipeline(words)
	if err != nil {
		return nil, err
	}
	return &CommandLine{Pipelines: []*Pipeline{pipeline}}, nil
}

// splitPipes splits a pipeline's words into its stages on "|"; the "|"
// itself is discarded rather than kept as a segment marker.
func splitPipes(words []string) [][]string {
	var segments [][]string
	var cur []string
	for _, w := range words {
		if w == "|" {
			segments = append(segments, cur)
			cur = nil
			continue
		}
		cur = append(cur, w)
	}
	segments = append(segments, cur)
	return segments
}

func parsePipeline(words []string) (*Pipeline, error) {
	p := &Pipeline{}

	// A trailing "&" backgrounds the whole pipeline.
	if n := len(words); n > 0 && words[n-1] == "&" {
		p.Background = true
		words = words[:n-1]
	}

	var segments [][]string
	for _, stage := range splitPipes(words) {
		if len(stage) == 0 {
			return nil, fmt.Errorf("empty command in pipeline")
		}
		segments = append(segments, splitOn(stage, "<", ">", ">>")...)
	}
	for _, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		switch segment[0] {
		case "<":
			if len(segment) < 2 {
				return nil, fmt.Errorf("missing filename after <")
			}
			p.IoredInput = segment[1]
		case ">":
			if len(segment) < 2 {
				return nil, fmt.Errorf("missing filename after >")
			}
			p.IoredOutput = segment[1]
			p.AppendOutput = false
		case ">>":
			if len(segment) < 2 {
				return nil, fmt.Errorf("missing filename after >>")
			}
			p.IoredOutput = segment[1]
			p.AppendOutput = true
		default:
			cmd, err := parseCommand(segment)
			if err != nil {
				return nil, err
			}
			p.Commands = append(p.Commands, cmd)
		}
	}

	if len(p.Commands) == 0 {
		return nil, fmt.Errorf("empty command in pipeline")
	}
	return p, nil
}

func parseCommand(argv []string) (*Command, error) {
	c := &Command{}
	for _, w := range argv {
		if w == "2>&1" {
			c.DupStderrToStdout = true
			continue
		}
		c.Argv = append(c.Argv, w)
	}
	if len(c.Argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return c, nil
}

// splitOn splits words on occurrences of any of the given separators,
// keeping each separator as the first element of the segment it
// introduces (the first segment has no leading separator).
func splitOn(words []string, seps ...string) [][]string {
	isSep := func(w string) bool {
		for _, s := range seps {
			if w == s {
				return true
			}
		}
		return false
	}

	var segments [][]string
	var cur []string
	for _, w := range words {
		if isSep(w) && len(cur) > 0 {
			segments = append(segments, cur)
			cur = []string{w}
			continue
		}
		cur = append(cur, w)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments
}
