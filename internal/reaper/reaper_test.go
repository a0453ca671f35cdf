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

package reaper_test

import (
	"bytes"
	"testing"

	. "gopkg.in/check.v1"

	"golang.org/x/sys/unix"

	"github.com/vt-cs3214/cush/internal/ast"
	"github.com/vt-cs3214/cush/internal/job"
	"github.com/vt-cs3214/cush/internal/reaper"
	"github.com/vt-cs3214/cush/internal/signalgate"
	"github.com/vt-cs3214/cush/internal/termstate"
)

func Test(t *testing.T) { TestingT(t) }

type reaperSuite struct {
	table *job.Table
	out   *bytes.Buffer
	r     *reaper.Reaper
}

var _ = Suite(&reaperSuite{})

func (s *reaperSuite) SetUpTest(c *C) {
	s.table = job.NewTable()
	s.out = &bytes.Buffer{}
	term := termstate.New(0)
	gate := signalgate.New(unix.SIGCHLD)
	s.r = reaper.New(s.table, term, gate, s.out)
}

func newJob(t *job.Table, pid int, status job.Status) *job.Job {
	j := t.Add(&ast.Pipeline{Commands: []*ast.Command{{Argv: []string{"sleep", "30"}}}})
	j.Status = status
	j.AddPid(pid)
	return j
}

// exitedStatus builds the wait(2) encoding for a process that exited
// normally with the given code: low 7 bits zero, exit code in bits 8-15.
func exitedStatus(code int) unix.WaitStatus {
	return unix.WaitStatus(uint32(code&0xff) << 8)
}

// signaledStatus builds the encoding for a process killed by sig: low 7
// bits hold the signal, with no core-dump bit (bit 7) set.
func signaledStatus(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(uint32(sig) & 0x7f)
}

// stoppedStatus builds the encoding for a stopped process: low byte is
// 0x7f, the stop signal is in bits 8-15.
func stoppedStatus(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(0x7f | (uint32(sig) << 8))
}

func (s *reaperSuite) TestExitDecrementsAlive(c *C) {
	j := newJob(s.table, 100, job.Background)
	c.Assert(j.Alive, Equals, 1)

	reaper.Apply(s.r, 100, exitedStatus(0))

	c.Assert(j.Alive, Equals, 0)
	c.Assert(j.Status, Equals, job.Background)
}

func (s *reaperSuite) TestSigtstpStopsForegroundJob(c *C) {
	j := newJob(s.table, 200, job.Foreground)

	reaper.Apply(s.r, 200, stoppedStatus(unix.SIGTSTP))

	c.Assert(j.Status, Equals, job.Stopped)
	c.Assert(j.Alive, Equals, 1) // stopping does not reduce alive (J3)
	c.Assert(j.SavedModesPresent, Equals, true)
	c.Assert(s.out.String(), Matches, `(?s).*\[1\].*Stopped.*\n`)
}

func (s *reaperSuite) TestSigstopDoesNotPrint(c *C) {
	j := newJob(s.table, 201, job.Background)

	reaper.Apply(s.r, 201, stoppedStatus(unix.SIGSTOP))

	c.Assert(j.Status, Equals, job.Stopped)
	c.Assert(s.out.String(), Equals, "")
}

func (s *reaperSuite) TestSigttouNeedsTerminal(c *C) {
	j := newJob(s.table, 202, job.Background)

	reaper.Apply(s.r, 202, stoppedStatus(unix.SIGTTOU))

	c.Assert(j.Status, Equals, job.NeedsTerminal)
}

func (s *reaperSuite) TestSignaledPrintsDiagnosticAndDecrementsAlive(c *C) {
	j := newJob(s.table, 300, job.Foreground)

	reaper.Apply(s.r, 300, signaledStatus(unix.SIGSEGV))

	c.Assert(j.Alive, Equals, 0)
	c.Assert(s.out.String(), Equals, "segmentation fault\n")
}

func (s *reaperSuite) TestSignaledUnlistedSignalPrintsNothing(c *C) {
	j := newJob(s.table, 301, job.Foreground)

	reaper.Apply(s.r, 301, signaledStatus(unix.SIGHUP))

	c.Assert(j.Alive, Equals, 0)
	c.Assert(s.out.String(), Equals, "")
}

func (s *reaperSuite) TestSpuriousPidIsIgnored(c *C) {
	newJob(s.table, 400, job.Background)

	reaper.Apply(s.r, 999999, exitedStatus(0)) // no job owns this pid

	c.Assert(s.out.String(), Equals, "")
}
