// Package sync provides the locking primitives used to guard state that is
// shared between the main execution path and interrupt handlers.
package sync

import (
	"beeos/kernel/cpu"
	"sync/atomic"
)

const spinAttemptsBeforeYielding = 1000

var (
	// yieldFn is invoked after a number of failed acquisition attempts.
	// There is a single execution context so by default there is nothing
	// to yield to; a pause keeps the loop well-behaved on real hardware.
	yieldFn func()

	// The interrupt-flag primitives are mocked by tests.
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
	interruptsEnabledFn = cpu.InterruptsEnabled
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	archAcquireSpinlock(&l.state, spinAttemptsBeforeYielding)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

func archAcquireSpinlock(state *uint32, attemptsBeforeYielding uint32) {
	for {
		for attempt := uint32(0); attempt < attemptsBeforeYielding; attempt++ {
			if atomic.LoadUint32(state) == 0 && atomic.SwapUint32(state, 1) == 0 {
				return
			}
		}

		if yieldFn != nil {
			yieldFn()
		}
	}
}

// IRQSpinlock is a Spinlock that keeps interrupts disabled while it is held.
// It guards state that interrupt handlers also touch: since a handler can
// preempt the main path at any instruction, the main path must not be
// interrupted while it holds the lock or the handler would spin forever.
//
// Interrupt handlers must only use TryToAcquire.
type IRQSpinlock struct {
	lock Spinlock

	// restoreIF is true if interrupts were enabled before the lock was
	// acquired. It is only accessed by the lock holder.
	restoreIF bool
}

// Acquire disables interrupts and then spins until the lock is available.
func (l *IRQSpinlock) Acquire() {
	wasEnabled := interruptsEnabledFn()
	disableInterruptsFn()
	l.lock.Acquire()
	l.restoreIF = wasEnabled
}

// TryToAcquire attempts to acquire the lock without spinning. Interrupts stay
// disabled only if the lock was acquired.
func (l *IRQSpinlock) TryToAcquire() bool {
	wasEnabled := interruptsEnabledFn()
	disableInterruptsFn()
	if !l.lock.TryToAcquire() {
		if wasEnabled {
			enableInterruptsFn()
		}
		return false
	}

	l.restoreIF = wasEnabled
	return true
}

// Release releases the lock and re-enables interrupts if they were enabled
// when the lock was acquired.
func (l *IRQSpinlock) Release() {
	restore := l.restoreIF
	l.restoreIF = false
	l.lock.Release()
	if restore {
		enableInterruptsFn()
	}
}

// EmulateInterruptFlag replaces the interrupt-flag primitives used by
// IRQSpinlock with a software flag whose initial state is given by enabled.
// This allows code guarded by an IRQSpinlock to run outside ring 0, such as
// in tests. It returns a pointer to the emulated flag and a function that
// restores the hardware primitives.
func EmulateInterruptFlag(enabled bool) (flag *bool, restore func()) {
	origDisable, origEnable, origEnabled := disableInterruptsFn, enableInterruptsFn, interruptsEnabledFn

	flag = &enabled
	disableInterruptsFn = func() { *flag = false }
	enableInterruptsFn = func() { *flag = true }
	interruptsEnabledFn = func() bool { return *flag }

	return flag, func() {
		disableInterruptsFn, enableInterruptsFn, interruptsEnabledFn = origDisable, origEnable, origEnabled
	}
}
