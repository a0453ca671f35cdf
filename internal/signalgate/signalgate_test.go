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

package signalgate_test

import (
	"os"
	"syscall"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"golang.org/x/sys/unix"

	"github.com/vt-cs3214/cush/internal/signalgate"
)

func Test(t *testing.T) { TestingT(t) }

type gateSuite struct{}

var _ = Suite(&gateSuite{})

func (s *gateSuite) TestIsBlockedReflectsBlockUnblock(c *C) {
	g := signalgate.New(unix.SIGUSR1)
	c.Assert(g.IsBlocked(), Equals, false)

	c.Assert(g.Block(), IsNil)
	c.Assert(g.IsBlocked(), Equals, true)

	c.Assert(g.Unblock(), IsNil)
	c.Assert(g.IsBlocked(), Equals, false)
}

func (s *gateSuite) TestSetHandlerDeliversSignal(c *C) {
	g := signalgate.New(unix.SIGUSR1)
	got := make(chan os.Signal, 1)
	remove := g.SetHandler(func(sig os.Signal) {
		got <- sig
	})
	defer remove()

	c.Assert(syscall.Kill(os.Getpid(), syscall.SIGUSR1), IsNil)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		c.Fatal("handler was not invoked within timeout")
	}
}

func (s *gateSuite) TestRemoveStopsDelivery(c *C) {
	g := signalgate.New(unix.SIGUSR1)
	got := make(chan os.Signal, 1)
	remove := g.SetHandler(func(sig os.Signal) {
		got <- sig
	})
	remove()

	c.Assert(syscall.Kill(os.Getpid(), syscall.SIGUSR1), IsNil)

	select {
	case <-got:
		c.Fatal("handler fired after being removed")
	case <-time.After(200 * time.Millisecond):
	}
}
