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

// Package shell drives the read/parse/dispatch/reap loop: it is the REPL
// described in spec.md §4.5, wiring together the job table, terminal
// manager, reaper, launcher and built-in dispatcher.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/vt-cs3214/cush/internal/ast"
	"github.com/vt-cs3214/cush/internal/builtin"
	"github.com/vt-cs3214/cush/internal/history"
	"github.com/vt-cs3214/cush/internal/job"
	"github.com/vt-cs3214/cush/internal/launcher"
	"github.com/vt-cs3214/cush/internal/logger"
	"github.com/vt-cs3214/cush/internal/reaper"
	"github.com/vt-cs3214/cush/internal/signalgate"
	"github.com/vt-cs3214/cush/internal/termstate"
)

const prompt = "cush> "

// Shell owns the REPL and every job-control component it drives.
type Shell struct {
	Table    *job.Table
	Term     *termstate.Manager
	Gate     *signalgate.Gate
	Reaper   *reaper.Reaper
	Launcher *launcher.Launcher
	Builtin  *builtin.Dispatcher
	History  *history.History

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	in *bufio.Reader
}

// New wires up a Shell ready to Run, using fd as the controlling terminal.
func New(fd int) *Shell {
	table := job.NewTable()
	term := termstate.New(fd)
	gate := signalgate.New(unix.SIGCHLD)
	rpr := reaper.New(table, term, gate, os.Stdout)
	hist := history.New(history.DefaultCapacity)

	s := &Shell{
		Table:  table,
		Term:   term,
		Gate:   gate,
		Reaper: rpr,
		Launcher: &launcher.Launcher{
			Table:  table,
			Term:   term,
			Gate:   gate,
			Reaper: rpr,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		},
		Builtin: &builtin.Dispatcher{
			Table:   table,
			Term:    term,
			Gate:    gate,
			Reaper:  rpr,
			History: hist,
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
		},
		History: hist,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		in:      bufio.NewReader(os.Stdin),
	}
	return s
}

// Run drives the REPL until EOF (or a built-in calls exit), returning the
// process exit code.
func (s *Shell) Run() int {
	if err := s.Term.Init(); err != nil {
		logger.Panicf("cannot initialize terminal state: %v", err)
	}
	s.Reaper.Start()
	defer s.Reaper.Stop()

	for {
		// Invariants at the top of each iteration (spec.md §4.5): the
		// child-status signal is unblocked, and the shell's own process
		// group owns the terminal. Both hold here: every path below that
		// blocks the signal or hands off the terminal also reverses it
		// before looping back.
		s.Table.ReapTerminated()

		if term.IsTerminal(int(s.Stdin.Fd())) {
			fmt.Fprint(s.Stdout, prompt)
		}

		line, err := s.readLine()
		if err == io.EOF {
			return 0
		}
		if err != nil {
			logger.Noticef("cannot read command line: %v", err)
			return 0
		}

		expanded, err := s.History.Expand(line)
		if err != nil {
			fmt.Fprintln(s.Stderr, err)
			continue
		}
		s.History.Add(expanded)

		cl, err := ast.Parse(expanded)
		if err != nil {
			fmt.Fprintln(s.Stderr, err)
			continue
		}
		if len(cl.Pipelines) == 0 {
			continue
		}

		for _, p := range cl.Pipelines {
			s.runPipeline(p)
		}
	}
}

func (s *Shell) runPipeline(p *ast.Pipeline) {
	handled, err := s.Builtin.Dispatch(p)
	if err != nil {
		fmt.Fprintln(s.Stderr, err)
		return
	}
	if handled {
		return
	}
	if err := s.Launcher.Launch(p); err != nil {
		fmt.Fprintln(s.Stderr, err)
	}
}

func (s *Shell) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return line, nil
		}
		return "", err
	}
	// Trim the trailing newline (and a preceding \r, for pasted CRLF input).
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
