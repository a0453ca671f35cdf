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

// Package builtin recognizes and executes cush's job-control built-ins
// against a job table, plus the trivial built-ins (cd, history, exit) that
// spec.md treats as out of scope for the job-control core but which still
// have to live somewhere for the shell to be usable.
package builtin

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/vt-cs3214/cush/internal/ast"
	"github.com/vt-cs3214/cush/internal/history"
	"github.com/vt-cs3214/cush/internal/job"
	"github.com/vt-cs3214/cush/internal/reaper"
	"github.com/vt-cs3214/cush/internal/signalgate"
	"github.com/vt-cs3214/cush/internal/termstate"
)

// Dispatcher executes built-ins against a shell's job table and terminal.
type Dispatcher struct {
	Table   *job.Table
	Term    *termstate.Manager
	Gate    *signalgate.Gate
	Reaper  *reaper.Reaper
	History *history.History

	Stdout io.Writer
	Stderr io.Writer
}

// names of every recognized built-in.
var names = map[string]bool{
	"jobs": true, "fg": true, "bg": true, "stop": true, "kill": true,
	"cd": true, "history": true, "exit": true,
}

// Recognized reports whether name is a built-in this package handles.
func Recognized(name string) bool {
	return names[name]
}

// Dispatch runs the pipeline's built-in if its first command names one.
// Matches the original shell's gating: the check (and, if it matches, the
// whole built-in's effect) applies only to the pipeline's first command;
// a built-in name there means the rest of the pipeline's stages are never
// spawned, even in a multi-stage pipeline like "jobs | wc -l". handled is
// false when the first command isn't a recognized built-in, in which case
// the caller should run the pipeline through the launcher instead.
func (d *Dispatcher) Dispatch(p *ast.Pipeline) (handled bool, err error) {
	if len(p.Commands) == 0 {
		return false, nil
	}
	argv := p.Commands[0].Argv
	name := argv[0]
	if !names[name] {
		return false, nil
	}
	args := argv[1:]

	switch name {
	case "jobs":
		d.jobs()
	case "fg":
		err = d.fg(args)
	case "bg":
		err = d.bg(args)
	case "stop":
		err = d.stop(args)
	case "kill":
		err = d.kill(args)
	case "cd":
		err = d.cd(args)
	case "history":
		d.history()
	case "exit":
		os.Exit(0)
	}
	return true, err
}

func (d *Dispatcher) jobs() {
	for _, j := range d.Table.Iter() {
		fmt.Fprintln(d.Stdout, j.Line())
	}
}

func (d *Dispatcher) jobArg(args []string) (*job.Job, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("usage: missing job id")
	}
	jid, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q", args[0])
	}
	j := d.Table.Get(jid)
	if j == nil {
		return nil, fmt.Errorf("%d: no such job", jid)
	}
	return j, nil
}

// fg brings a job to the foreground: it restores the job's saved terminal
// modes (if a stop of the job has been recorded) or keeps the shell's
// current modes otherwise, transfers the terminal, continues the job's process
// group, then waits for it like any other foreground pipeline.
func (d *Dispatcher) fg(args []string) error {
	j, err := d.jobArg(args)
	if err != nil {
		return err
	}
	j.Status = job.Foreground
	fmt.Fprintln(d.Stdout, j.Pipeline.String())

	var modes *termstate.State
	if j.SavedModesPresent {
		modes = j.SavedModes
	}
	if err := d.Term.GiveTerminalTo(modes, j.Pgid); err != nil {
		return err
	}
	if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
		return fmt.Errorf("cannot continue job %d: %w", j.ID, err)
	}

	d.Gate.Block()
	d.Reaper.WaitForeground(j)
	err = d.Term.GiveBackToShell()
	d.Gate.Unblock()
	return err
}

// bg resumes a stopped job in the background; it never touches the
// terminal.
func (d *Dispatcher) bg(args []string) error {
	j, err := d.jobArg(args)
	if err != nil {
		return err
	}
	j.Status = job.Background
	if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
		return fmt.Errorf("cannot continue job %d: %w", j.ID, err)
	}
	return nil
}

// stop suspends a job's process group. The resulting status change is
// recorded by the async reaper once SIGCHLD reports the SIGSTOP.
func (d *Dispatcher) stop(args []string) error {
	j, err := d.jobArg(args)
	if err != nil {
		return err
	}
	if err := unix.Kill(-j.Pgid, unix.SIGSTOP); err != nil {
		return fmt.Errorf("cannot stop job %d: %w", j.ID, err)
	}
	return nil
}

// kill terminates a job's process group. Named after the original shell's
// built-in, which (despite the name) sends SIGTERM rather than SIGKILL;
// preserved here rather than silently renamed or strengthened.
func (d *Dispatcher) kill(args []string) error {
	j, err := d.jobArg(args)
	if err != nil {
		return err
	}
	if err := unix.Kill(-j.Pgid, unix.SIGTERM); err != nil {
		return fmt.Errorf("cannot terminate job %d: %w", j.ID, err)
	}
	return nil
}

func (d *Dispatcher) cd(args []string) error {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		dir = os.Getenv("HOME")
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("cannot change directory to %q: %w", dir, err)
	}
	return nil
}

func (d *Dispatcher) history() {
	for i, line := range d.History.Lines() {
		fmt.Fprintf(d.Stdout, "%d %s\n", i+1, line)
	}
}
