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

package job_test

import (
	. "gopkg.in/check.v1"

	"github.com/vt-cs3214/cush/internal/job"
)

type statusSuite struct{}

var _ = Suite(&statusSuite{})

func (s *statusSuite) TestStatusStrings(c *C) {
	c.Assert(job.Foreground.String(), Equals, "Foreground")
	c.Assert(job.Background.String(), Equals, "Running")
	c.Assert(job.Stopped.String(), Equals, "Stopped")
	c.Assert(job.NeedsTerminal.String(), Equals, "Stopped (tty)")
}

func (s *statusSuite) TestLineFormat(c *C) {
	table := job.NewTable()
	j := table.Add(pipeline("sleep", "30"))
	j.Status = job.Background

	c.Assert(j.Line(), Equals, "[1]\tRunning\t\t(sleep 30)")
}
