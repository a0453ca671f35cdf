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

// Package termstate owns the controlling terminal's attributes and the
// current foreground process-group assignment, on behalf of the shell. It
// realizes the "terminal state manager" collaborator described in cush's
// job-control design: the job-control core never touches a tty ioctl
// directly, it goes through a *Manager.
package termstate

import (
	"fmt"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// State is a caller-owned snapshot of a terminal's attributes, as saved by
// Manager.Save and later restored by Manager.GiveTerminalTo.
type State struct {
	termios unix.Termios
}

// Manager mediates ownership of one controlling terminal between the shell
// and the jobs it launches. Exactly one of {shell, some job's pgrp} owns the
// terminal at any moment; Manager is how that ownership changes hands.
type Manager struct {
	fd        int
	shellPgid int
	current   unix.Termios
}

// New returns a Manager for the terminal open on fd.
func New(fd int) *Manager {
	return &Manager{fd: fd}
}

// Init records the shell's own process group as the terminal's current
// owner and samples its attributes. Call once at shell startup.
func (m *Manager) Init() error {
	// Getpgrp cannot fail on Linux, so it reports no error to check.
	m.shellPgid = unix.Getpgrp()
	return m.Sample()
}

// Sample refreshes the manager's cached attributes from the terminal.
func (m *Manager) Sample() error {
	t, err := unix.IoctlGetTermios(m.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("cannot sample terminal attributes: %w", err)
	}
	m.current = *t
	return nil
}

// Save copies the manager's current attributes into a new caller-owned
// slot, returning it.
func (m *Manager) Save() *State {
	return &State{termios: m.current}
}

// GiveTerminalTo transfers foreground ownership of the terminal to pgid,
// restoring the terminal's attributes from state first if state is
// non-nil. This is the single atomic-looking handoff point used both by
// the pipeline launcher (shell -> job) and by fg (job -> job, after it was
// stopped).
func (m *Manager) GiveTerminalTo(state *State, pgid int) error {
	if state != nil {
		if err := termios.Tcsetattr(uintptr(m.fd), termios.TCSADRAIN, &state.termios); err != nil {
			return fmt.Errorf("cannot restore terminal attributes: %w", err)
		}
		m.current = state.termios
	}
	if err := unix.IoctlSetPointerInt(m.fd, unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("cannot set foreground process group %d: %w", pgid, err)
	}
	return nil
}

// GiveBackToShell reclaims the terminal's foreground process group for the
// shell itself. Called whenever a foreground job exits or stops.
func (m *Manager) GiveBackToShell() error {
	if err := unix.IoctlSetPointerInt(m.fd, unix.TIOCSPGRP, m.shellPgid); err != nil {
		return fmt.Errorf("cannot reclaim terminal: %w", err)
	}
	return nil
}

// CurrentOwner returns the terminal's current foreground process group.
func (m *Manager) CurrentOwner() (int, error) {
	pgid, err := unix.IoctlGetInt(m.fd, unix.TIOCGPGRP)
	if err != nil {
		return 0, fmt.Errorf("cannot query foreground process group: %w", err)
	}
	return pgid, nil
}

// Fd returns the terminal's file descriptor.
func (m *Manager) Fd() int {
	return m.fd
}

// ShellPgid returns the shell's own process group, as recorded at Init.
func (m *Manager) ShellPgid() int {
	return m.shellPgid
}
