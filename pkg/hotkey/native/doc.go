// Package native registers global shortcuts with the operating system
// through golang.design/x/hotkey.
//
// The backend is only compiled with the "hotkeys" build tag:
//
//	go build -tags hotkeys ./cmd/observer-companion
//
// Without it, New returns a Host whose Install fails with ErrUnsupported.
// The hotkey library panics during package init on Linux when no X11
// display is reachable, so linking it unconditionally would take down every
// subcommand on a headless machine.
//
// On macOS the hotkey library needs the main thread, so the program must run
// inside mainthread.Init. On Linux it talks to X11 and requires cgo.
package native
