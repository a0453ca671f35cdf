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

// Package reaper implements the single child-status update routine shared
// by cush's two waiting disciplines: the asynchronous SIGCHLD handler that
// drains status changes while the shell blocks on readline, and the
// synchronous wait loop a foreground pipeline uses while it owns the
// terminal. Keeping one routine for both keeps the job-table invariants in
// one place; see internals/reaper.go in the teacher repo for the
// single-goroutine-owns-the-waits shape this is adapted from.
package reaper

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v2"

	"github.com/vt-cs3214/cush/internal/job"
	"github.com/vt-cs3214/cush/internal/logger"
	"github.com/vt-cs3214/cush/internal/signalgate"
	"github.com/vt-cs3214/cush/internal/termstate"
)

// signalMessage is the diagnostic printed when a child is killed by a
// signal from this taxonomy; signals not listed here print nothing.
var signalMessage = map[unix.Signal]string{
	unix.SIGFPE:  "floating point exception",
	unix.SIGSEGV: "segmentation fault",
	unix.SIGABRT: "aborted",
	unix.SIGKILL: "killed",
	unix.SIGTERM: "terminated",
}

// Reaper owns the async/sync child-status drivers for one job table.
type Reaper struct {
	table *job.Table
	term  *termstate.Manager
	gate  *signalgate.Gate
	out   io.Writer

	mu      sync.Mutex
	tomb    tomb.Tomb
	started bool
	remove  func()
}

// New returns a Reaper for the given job table, terminal manager, and
// signal gate. out receives the diagnostic lines this package prints
// (stopped-job lines, terminated-by-signal messages); pass os.Stdout to
// match the original shell.
func New(table *job.Table, term *termstate.Manager, gate *signalgate.Gate, out io.Writer) *Reaper {
	return &Reaper{table: table, term: term, gate: gate, out: out}
}

// Start installs the SIGCHLD handler and starts the tomb-supervised
// goroutine that drains it.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}

	notified := make(chan struct{}, 1)
	r.remove = r.gate.SetHandler(func(os.Signal) {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	r.tomb.Go(func() error {
		for {
			select {
			case <-notified:
				r.DrainAsync()
			case <-r.tomb.Dying():
				return nil
			}
		}
	})
	r.started = true
}

// Stop stops the tomb-supervised goroutine and removes the SIGCHLD
// handler.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.remove()
	r.tomb.Kill(nil)
	r.tomb.Wait()
	r.tomb = tomb.Tomb{}
	r.started = false
}

// DrainAsync is the asynchronous driver: it reaps every child whose status
// has changed, non-blockingly, until none remain. It is invoked from the
// SIGCHLD handler while the shell is blocked reading a command line, so it
// must never deallocate a job (only the reap sweep does that). It holds
// the gate's critical section for the duration of the drain, which is the
// actual cross-goroutine barrier against a concurrent WaitForeground (see
// signalgate's package doc: a per-thread signal mask alone can't prevent
// that race).
func (r *Reaper) DrainAsync() {
	r.gate.Lock()
	defer r.gate.Unlock()
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED, nil)
		switch {
		case err == unix.ECHILD:
			return
		case err != nil:
			logger.Noticef("reaper: cannot wait for children: %v", err)
			return
		case pid <= 0:
			return
		}
		r.apply(pid, ws)
	}
}

// WaitForeground is the synchronous driver: it blocks for one child-status
// change at a time until job is no longer Foreground or has no pids left
// alive. Must be called with the gate Blocked, which holds its critical
// section for the duration and is what actually keeps this from racing
// DrainAsync (not the signal mask Block also sets — see signalgate's
// package doc). Any waitpid failure here indicates a prior bookkeeping bug
// in the shell and is fatal.
func (r *Reaper) WaitForeground(j *job.Job) {
	if !r.gate.IsBlocked() {
		logger.Panicf("WaitForeground called with child-status signal unblocked")
	}
	for j.Status == job.Foreground && j.Alive > 0 {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WUNTRACED, nil)
		if err != nil {
			logger.Panicf("waitpid failed, indicating a shell bookkeeping bug: %v", err)
		}
		r.apply(pid, ws)
	}
}

// apply is the single update routine both drivers call: it finds the job
// owning pid and updates its status, alive count, and saved terminal modes
// according to the wait outcome.
func (r *Reaper) apply(pid int, ws unix.WaitStatus) {
	j := r.findJob(pid)
	if j == nil {
		// A spurious or already-handled report; tolerated, not an error.
		return
	}

	switch {
	case ws.Stopped():
		switch ws.StopSignal() {
		case unix.SIGTSTP:
			j.Status = job.Stopped
			fmt.Fprintln(r.out, j.Line())
			r.saveModes(j)
		case unix.SIGSTOP:
			j.Status = job.Stopped
			r.saveModes(j)
		case unix.SIGTTOU, unix.SIGTTIN:
			j.Status = job.NeedsTerminal
			r.saveModes(j)
		}

	case ws.Exited():
		if j.Status == job.Foreground {
			if err := r.term.Sample(); err != nil {
				logger.Debugf("reaper: cannot sample terminal after foreground exit: %v", err)
			}
		}
		j.Alive--

	case ws.Signaled():
		if msg, ok := signalMessage[ws.Signal()]; ok {
			fmt.Fprintln(r.out, msg)
		}
		j.Alive--
	}
}

func (r *Reaper) saveModes(j *job.Job) {
	if err := r.term.Sample(); err != nil {
		logger.Debugf("reaper: cannot sample terminal before save: %v", err)
	}
	j.SavedModes = r.term.Save()
	j.SavedModesPresent = true
}

func (r *Reaper) findJob(pid int) *job.Job {
	for _, j := range r.table.Iter() {
		if j.HasPid(pid) {
			return j
		}
	}
	return nil
}
