package main

import (
	"os"

	"github.com/observerai/companion/internal/cli"
	"golang.design/x/hotkey/mainthread"
)

func main() {
	// macOS only delivers global hotkeys to the main thread's run loop.
	code := 0
	mainthread.Init(func() {
		if err := cli.Execute(); err != nil {
			code = 1
		}
	})
	os.Exit(code)
}
