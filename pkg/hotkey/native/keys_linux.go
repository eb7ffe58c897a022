//go:build hotkeys && linux

package native

import (
	"github.com/observerai/companion/pkg/shortcut"
	xhotkey "golang.design/x/hotkey"
)

var modifierMap = map[shortcut.Modifier]xhotkey.Modifier{
	shortcut.ModControl: xhotkey.ModCtrl,
	shortcut.ModShift:   xhotkey.ModShift,
	shortcut.ModAlt:     xhotkey.Mod1, // Alt is Mod1 on X11
	shortcut.ModSuper:   xhotkey.Mod4, // Super is Mod4 on X11
}

// X11 keysyms.
var rawKeys = map[shortcut.Key]xhotkey.Key{
	shortcut.KeyBackspace: xhotkey.Key(0xff08),
	shortcut.KeyDelete:    xhotkey.Key(0xffff),
	shortcut.KeyHome:      xhotkey.Key(0xff50),
	shortcut.KeyEnd:       xhotkey.Key(0xff57),
	shortcut.KeyPageUp:    xhotkey.Key(0xff55),
	shortcut.KeyPageDown:  xhotkey.Key(0xff56),
}
