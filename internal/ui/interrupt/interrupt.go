// Package interrupt installs a Ctrl+C handler that gives the program a grace
// period to finish the current epoch and save before being killed.
package interrupt

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"
)

// Notify captures SIGINT (Ctrl+C) and SIGTERM and calls onInterrupt, usually
// a context cancel. If the program has not exited on its own after
// gracePeriod, the terminal is reset and the process killed.
func Notify(onInterrupt func(), gracePeriod time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		fmt.Println()
		klog.Errorf("Got interrupted (signal %q), shutting down... (%s)", s, gracePeriod)
		if onInterrupt != nil {
			go onInterrupt()
		}
		time.Sleep(gracePeriod)
		ResetTerminal()
		klog.Fatalf("Graceful shutdown period of %s expired, exiting.", gracePeriod)
	}()
}

// ResetTerminal makes the cursor visible and restores the default colors.
func ResetTerminal() {
	fmt.Print("\033[?25h\033[39;49;0m\n")
}
