//go:build hotkeys && windows

package native

import (
	"github.com/observerai/companion/pkg/shortcut"
	xhotkey "golang.design/x/hotkey"
)

var modifierMap = map[shortcut.Modifier]xhotkey.Modifier{
	shortcut.ModControl: xhotkey.ModCtrl,
	shortcut.ModShift:   xhotkey.ModShift,
	shortcut.ModAlt:     xhotkey.ModAlt,
	shortcut.ModSuper:   xhotkey.ModWin,
}

// Virtual-key codes.
var rawKeys = map[shortcut.Key]xhotkey.Key{
	shortcut.KeyBackspace: xhotkey.Key(0x08),
	shortcut.KeyDelete:    xhotkey.Key(0x2E),
	shortcut.KeyHome:      xhotkey.Key(0x24),
	shortcut.KeyEnd:       xhotkey.Key(0x23),
	shortcut.KeyPageUp:    xhotkey.Key(0x21),
	shortcut.KeyPageDown:  xhotkey.Key(0x22),
}
