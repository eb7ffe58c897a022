//go:build hotkeys && darwin

package native

import (
	"github.com/observerai/companion/pkg/shortcut"
	xhotkey "golang.design/x/hotkey"
)

var modifierMap = map[shortcut.Modifier]xhotkey.Modifier{
	shortcut.ModControl: xhotkey.ModCtrl,
	shortcut.ModShift:   xhotkey.ModShift,
	shortcut.ModAlt:     xhotkey.ModOption,
	shortcut.ModSuper:   xhotkey.ModCmd,
}

// Carbon virtual key codes. Backspace is kVK_Delete on macOS.
var rawKeys = map[shortcut.Key]xhotkey.Key{
	shortcut.KeyBackspace: xhotkey.Key(0x33),
	shortcut.KeyDelete:    xhotkey.Key(0x75),
	shortcut.KeyHome:      xhotkey.Key(0x73),
	shortcut.KeyEnd:       xhotkey.Key(0x77),
	shortcut.KeyPageUp:    xhotkey.Key(0x74),
	shortcut.KeyPageDown:  xhotkey.Key(0x79),
}
