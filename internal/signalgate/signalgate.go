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

// Package signalgate installs a handler for one signal and lets callers
// block/unblock delivery of that signal around a critical section, the way
// cush's reaper needs to keep its synchronous foreground-wait loop from
// racing the asynchronous SIGCHLD handler.
//
// A signal is process-directed: the kernel delivers it to whichever thread
// in the process doesn't currently have it masked, not to a thread chosen
// by the caller. unix.PthreadSigmask only ever affects the calling
// goroutine's current OS thread, so it cannot by itself keep a signal from
// reaching some other M the Go runtime happens to be running the async
// handler's goroutine on. The actual mutual exclusion Block/Unblock give
// callers comes from an ordinary mutex shared with the handler path (see
// Lock/Unlock); the sigmask calls are kept alongside it only to stop the
// calling thread itself from being interrupted or from redundantly waking
// the handler while the critical section runs.
package signalgate

import (
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Gate guards one signal. The zero value is not usable; use New.
type Gate struct {
	signo unix.Signal

	// critical is the real cross-goroutine, cross-thread barrier: Block and
	// the async handler's drain both hold it, so at most one of them is
	// ever updating job state at a time, regardless of which OS thread the
	// signal lands on.
	critical sync.Mutex

	mu      sync.Mutex
	blocked bool

	ch   chan os.Signal
	stop chan struct{}
}

// New returns a Gate for the given signal.
func New(signo unix.Signal) *Gate {
	return &Gate{signo: signo}
}

// SetHandler installs fn as the handler for the gate's signal: every time
// the signal arrives, fn runs in its own goroutine loop. Returns a stop
// function that removes the handler. Calling SetHandler twice without
// stopping the first replaces it.
func (g *Gate) SetHandler(fn func(os.Signal)) (remove func()) {
	g.mu.Lock()
	if g.stop != nil {
		close(g.stop)
		signal.Stop(g.ch)
	}
	ch := make(chan os.Signal, 1)
	stop := make(chan struct{})
	g.ch, g.stop = ch, stop
	g.mu.Unlock()

	signal.Notify(ch, syscall.Signal(g.signo))
	go func() {
		for {
			select {
			case sig := <-ch:
				fn(sig)
			case <-stop:
				return
			}
		}
	}()
	return func() {
		g.mu.Lock()
		if g.stop == stop {
			close(stop)
			signal.Stop(ch)
			g.stop = nil
		}
		g.mu.Unlock()
	}
}

// Lock acquires the gate's cross-goroutine critical section, without
// touching any thread's signal mask. The asynchronous drain path uses this
// directly: it already runs on its own dedicated goroutine and has no
// thread-affinity of its own to protect.
func (g *Gate) Lock() {
	g.critical.Lock()
}

// Unlock releases the critical section acquired by Lock.
func (g *Gate) Unlock() {
	g.critical.Unlock()
}

// Block acquires the gate's critical section (see Lock) and, as a
// best-effort measure, also blocks delivery of the gate's signal to the
// calling goroutine's underlying OS thread, locking that goroutine to its
// thread so the mask stays in effect until Unblock. The critical section,
// not the mask, is what actually keeps the asynchronous handler from
// running concurrently with the caller. Callers must pair every Block with
// an Unblock on the same goroutine.
func (g *Gate) Block() error {
	g.Lock()
	runtime.LockOSThread()
	var set unix.Sigset_t
	addSignal(&set, g.signo)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		runtime.UnlockOSThread()
		g.Unlock()
		return err
	}
	g.mu.Lock()
	g.blocked = true
	g.mu.Unlock()
	return nil
}

// Unblock reverses a prior Block.
func (g *Gate) Unblock() error {
	var set unix.Sigset_t
	addSignal(&set, g.signo)
	err := unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil)
	g.mu.Lock()
	g.blocked = false
	g.mu.Unlock()
	runtime.UnlockOSThread()
	g.Unlock()
	return err
}

// IsBlocked reports whether the gate's signal is currently blocked.
func (g *Gate) IsBlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked
}

func addSignal(set *unix.Sigset_t, signo unix.Signal) {
	// Sigset_t.Val is a bitmask word array; signal N sets bit N-1, per
	// sigsetops(3).
	word := (signo - 1) / 64
	bit := uint64(1) << (uint(signo-1) % 64)
	set.Val[word] |= bit
}
