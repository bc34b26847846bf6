package go_func_utils

import "runtime/debug"
import "log"

func SafeGo(logger *log.Logger, fn func()) {
	// the overlay UI owns the terminal and swallows anything written to
	// stdout/stderr, so capture panics in our logger before crashing out again...
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Printf("PANIC: %v\n%s", r, debug.Stack())
				panic(r)
			}
		}()
		fn()
	}()
}
