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

// Package launcher builds and spawns one pipeline's worth of processes,
// wiring up pipes, redirection and the process-group/terminal handoff that
// job control depends on.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/vt-cs3214/cush/internal/ast"
	"github.com/vt-cs3214/cush/internal/job"
	"github.com/vt-cs3214/cush/internal/logger"
	"github.com/vt-cs3214/cush/internal/reaper"
	"github.com/vt-cs3214/cush/internal/signalgate"
	"github.com/vt-cs3214/cush/internal/termstate"
)

// Launcher spawns pipelines as jobs.
type Launcher struct {
	Table  *job.Table
	Term   *termstate.Manager
	Gate   *signalgate.Gate
	Reaper *reaper.Reaper

	Stdout io.Writer // receives background job lines, e.g. "[1] 1234"
	Stderr io.Writer // receives per-stage spawn diagnostics
}

// Launch runs one pipeline as a new job: it creates the job, wires up
// inter-stage pipes and redirection, spawns every stage with the correct
// process-group attributes, then (for a foreground job) waits for it.
func (l *Launcher) Launch(p *ast.Pipeline) error {
	j := l.Table.Add(p)
	if p.Background {
		j.Status = job.Background
	} else {
		j.Status = job.Foreground
	}

	n := len(p.Commands)
	pipes := make([]*pipe, n-1)
	for i := range pipes {
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("cannot create pipe: %w", err)
		}
		pipes[i] = &pipe{r: r, w: w}
	}

	for i, c := range p.Commands {
		if err := l.spawnStage(j, p, c, i, n, pipes); err != nil {
			fmt.Fprintf(l.Stderr, "%s: %v\n", c.Argv[0], err)
		}
	}

	for _, pp := range pipes {
		pp.r.Close()
		pp.w.Close()
	}

	if j.Status == job.Background {
		fmt.Fprintf(l.Stdout, "[%d] %d\n", j.ID, firstPid(j))
		return nil
	}

	l.Gate.Block()
	l.Reaper.WaitForeground(j)
	err := l.Term.GiveBackToShell()
	l.Gate.Unblock()
	if err != nil {
		return fmt.Errorf("cannot reclaim terminal: %w", err)
	}
	return nil
}

type pipe struct {
	r, w *os.File
}

func firstPid(j *job.Job) int {
	if len(j.Pids) == 0 {
		return 0
	}
	return j.Pids[0]
}

func (l *Launcher) spawnStage(j *job.Job, p *ast.Pipeline, c *ast.Command, i, n int, pipes []*pipe) error {
	cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if i == 0 && p.IoredInput != "" {
		f, err := os.OpenFile(p.IoredInput, os.O_RDONLY, 0)
		if err != nil {
			return err
		}
		cmd.Stdin = f
	}
	if i == n-1 && p.IoredOutput != "" {
		var f *os.File
		var err error
		if p.AppendOutput {
			f, err = os.OpenFile(p.IoredOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		} else {
			f, err = os.OpenFile(p.IoredOutput, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
		}
		if err != nil {
			return err
		}
		cmd.Stdout = f
	}
	if i > 0 {
		cmd.Stdin = pipes[i-1].r
	}
	if i < n-1 {
		cmd.Stdout = pipes[i].w
	}
	if c.DupStderrToStdout {
		cmd.Stderr = cmd.Stdout
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if i == 0 {
		if j.Status == job.Foreground {
			// Foreground makes the kernel assign the new process group as
			// the terminal's foreground pgrp atomically, in the forked
			// child before it execs — the Go equivalent of
			// posix_spawnattr_tcsetpgrp_np, avoiding the window where
			// stage 0 could read the terminal before being foreground and
			// get stopped by SIGTTIN for it. Unlike Setctty, Foreground
			// requires Ctty to be the terminal's descriptor number in this
			// (the parent) process: forkAndExecInChild issues the
			// TIOCSPGRP ioctl right after fork, before ExtraFiles are
			// remapped into the child's fd table, so an ExtraFiles index
			// would name the wrong descriptor at that point.
			cmd.SysProcAttr.Foreground = true
			cmd.SysProcAttr.Ctty = l.Term.Fd()
		}
	} else {
		cmd.SysProcAttr.Pgid = j.Pgid
	}

	err := cmd.Start()
	if err != nil {
		return spawnError(err)
	}
	j.AddPid(cmd.Process.Pid)
	logger.Debugf("spawned stage %d of job %d: pid %d", i, j.ID, cmd.Process.Pid)
	return nil
}

func spawnError(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return errors.New("no such file or directory")
	}
	return err
}
