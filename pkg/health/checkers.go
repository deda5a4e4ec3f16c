package health

import (
	"context"
	"fmt"
	"runtime"
)

// GoroutineCountCheck fails once the process exceeds threshold goroutines,
// catching leaks before they exhaust memory.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return fmt.Errorf("too many goroutines: %d > %d", count, threshold)
		}
		return nil
	}
}
