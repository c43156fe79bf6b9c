//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals delivers Ctrl+C, the only signal that cancels a running
// simulation on Windows.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
