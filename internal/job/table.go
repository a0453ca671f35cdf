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

package job

import (
	"github.com/vt-cs3214/cush/internal/ast"
	"github.com/vt-cs3214/cush/internal/logger"
)

// Table is the in-memory registry of every job the shell currently tracks.
// It is safe for concurrent use only while the child-status signal is
// blocked; Iter in particular must not run concurrently with Add or
// Remove.
type Table struct {
	byID  map[int]*Job
	order []*Job
}

// NewTable returns an empty job table.
func NewTable() *Table {
	return &Table{byID: make(map[int]*Job)}
}

// Add allocates the smallest free job id >= 1, constructs a Job wrapping
// pipeline, and appends it to the insertion order. The caller must still
// set Status before returning control to anything that might observe the
// job (e.g. before unblocking the child-status signal).
//
// Add is only ever called from the main flow, never from the async reaper.
func (t *Table) Add(pipeline *ast.Pipeline) *Job {
	id := t.nextID()
	j := &Job{
		ID:       id,
		Pipeline: pipeline,
	}
	t.byID[id] = j
	t.order = append(t.order, j)
	return j
}

func (t *Table) nextID() int {
	for id := 1; ; id++ {
		if _, ok := t.byID[id]; !ok {
			return id
		}
		if id == maxJobs {
			logger.Panicf("job table exhausted at %d jobs", maxJobs)
		}
	}
}

// maxJobs bounds job-id allocation; the table supports several thousand
// concurrent jobs as required by spec, well beyond realistic shell usage.
const maxJobs = 1 << 16

// Get returns the job with the given id, or nil if there is none.
func (t *Table) Get(id int) *Job {
	return t.byID[id]
}

// Remove deletes job from the table. The caller must ensure job.Alive == 0
// first; Remove does not free the job's pipeline beyond dropping cush's own
// reference to it (Go's GC reclaims the rest).
func (t *Table) Remove(j *Job) {
	delete(t.byID, j.ID)
	for i, other := range t.order {
		if other == j {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Iter returns the jobs in the table in insertion order. The returned slice
// must be treated as read-only and not retained across a Remove.
func (t *Table) Iter() []*Job {
	return t.order
}

// ReapTerminated removes every job with Alive == 0 from the table, in two
// passes (collect, then remove) so that removal doesn't perturb iteration.
// Must run only while the child-status signal is blocked, or at a
// quiescent point where the async reaper cannot fire (e.g. the REPL, after
// readline returns and before the next call to it).
func (t *Table) ReapTerminated() []*Job {
	var dead []*Job
	for _, j := range t.order {
		if j.Alive == 0 {
			dead = append(dead, j)
		}
	}
	for _, j := range dead {
		t.Remove(j)
	}
	return dead
}
