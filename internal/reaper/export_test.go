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

package reaper

import "golang.org/x/sys/unix"

// Apply exposes the unexported update routine for tests, which construct
// unix.WaitStatus values directly rather than spawning real children.
func Apply(r *Reaper, pid int, ws unix.WaitStatus) {
	r.apply(pid, ws)
}
