/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

package control

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setAffinity pins the calling OS thread to CPU affinity-1. affinity == 0
// means "leave affinity alone". Go schedules goroutines across OS
// threads, so this only has the intended effect when called from a
// goroutine that has also called runtime.LockOSThread.
func setAffinity(affinity uint32) error {
	if affinity == 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(int(affinity - 1))
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("%w: cannot set processor affinity (cpu %d): %v", ErrSystem, affinity-1, err)
	}
	return nil
}
