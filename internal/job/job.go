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

// Package job holds the data model for jobs: pipelines submitted as a unit,
// tracked by the shell from the moment they're launched until every process
// in them has been reaped.
package job

import (
	"fmt"

	"github.com/vt-cs3214/cush/internal/ast"
	"github.com/vt-cs3214/cush/internal/termstate"
)

// Status is the lifecycle state of a job.
type Status int

const (
	// Foreground jobs own the terminal; at most one job is Foreground at a
	// time.
	Foreground Status = iota
	// Background jobs are running but detached from the terminal.
	Background
	// Stopped jobs have been suspended (e.g. Ctrl-Z, or kill -STOP).
	Stopped
	// NeedsTerminal jobs are background jobs that tried to touch the
	// terminal and were stopped by SIGTTIN/SIGTTOU as a result.
	NeedsTerminal
)

// String renders the status the way "jobs" prints it.
func (s Status) String() string {
	switch s {
	case Foreground:
		return "Foreground"
	case Background:
		return "Running"
	case Stopped:
		return "Stopped"
	case NeedsTerminal:
		return "Stopped (tty)"
	default:
		return "Unknown"
	}
}

// Job represents one pipeline submitted as a unit, the shell's unit of
// control.
type Job struct {
	// ID is stable for the job's lifetime and reused after the job is
	// reaped.
	ID int

	// Pipeline is the parsed command line this job represents.
	Pipeline *ast.Pipeline

	// Pgid is the process group shared by every stage, equal to the pid of
	// the first stage. Zero until the first stage has been spawned.
	Pgid int

	// Pids is the ordered sequence of pids of stages successfully spawned.
	Pids []int

	// Alive is the number of pids not yet observed terminated.
	Alive int

	Status Status

	// SavedModes is the terminal-attribute snapshot taken the last time
	// this job was stopped (or needed the terminal), whether it was in the
	// foreground or the background at the time; valid only when
	// SavedModesPresent is true.
	SavedModes        *termstate.State
	SavedModesPresent bool
}

// AddPid records a newly spawned stage's pid, making it the job's pgid if
// it's the first one.
func (j *Job) AddPid(pid int) {
	j.Pids = append(j.Pids, pid)
	j.Alive++
	if j.Pgid == 0 {
		j.Pgid = pid
	}
}

// HasPid reports whether pid belongs to this job.
func (j *Job) HasPid(pid int) bool {
	for _, p := range j.Pids {
		if p == pid {
			return true
		}
	}
	return false
}

// Line renders the job the way "jobs" prints it: "[id]\tstatus\t\t(cmdline)".
func (j *Job) Line() string {
	return fmt.Sprintf("[%d]\t%s\t\t(%s)", j.ID, j.Status, j.Pipeline.String())
}
