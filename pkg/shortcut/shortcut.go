package shortcut

import (
	"errors"
	"fmt"
	"strings"
)

// Modifier is a bit set of modifier keys held down with a chord.
type Modifier uint8

const (
	ModSuper Modifier = 1 << iota
	ModAlt
	ModControl
	ModShift
)

// Has reports whether all modifiers in m are set.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod == mod
}

// List returns the individual modifiers in canonical order.
func (m Modifier) List() []Modifier {
	mods := make([]Modifier, 0, 4)
	for _, mod := range []Modifier{ModSuper, ModAlt, ModControl, ModShift} {
		if m.Has(mod) {
			mods = append(mods, mod)
		}
	}
	return mods
}

func (m Modifier) String() string {
	names := make([]string, 0, 4)
	for _, mod := range m.List() {
		switch mod {
		case ModSuper:
			names = append(names, "Super")
		case ModAlt:
			names = append(names, "Alt")
		case ModControl:
			names = append(names, "Ctrl")
		case ModShift:
			names = append(names, "Shift")
		}
	}
	return strings.Join(names, "+")
}

// Chord is one physical key combination: a modifier set plus a single key.
// Chords are comparable and may be used as map keys.
type Chord struct {
	Modifiers Modifier
	Key       Key
}

// String renders the chord in canonical form, e.g. "Alt+Shift+ArrowUp".
func (c Chord) String() string {
	if c.Modifiers == 0 {
		return c.Key.String()
	}
	return c.Modifiers.String() + "+" + c.Key.String()
}

var (
	// ErrEmpty is returned for empty shortcut strings or empty tokens.
	ErrEmpty = errors.New("empty shortcut")
	// ErrUnknownModifier is returned when a modifier token is not recognized.
	ErrUnknownModifier = errors.New("unknown modifier")
	// ErrUnknownKey is returned when the key token is not recognized.
	ErrUnknownKey = errors.New("unknown key")
)

// ParseError describes why a shortcut string was rejected.
type ParseError struct {
	Input string
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid shortcut %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("invalid shortcut %q: %v %q", e.Input, e.Err, e.Token)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var modifierTokens = map[string]Modifier{
	"Cmd":   ModSuper,
	"Super": ModSuper,
	"Alt":   ModAlt,
	"Ctrl":  ModControl,
	"Shift": ModShift,
}

// Parse turns a human-authored shortcut such as "Alt+Shift+ArrowUp" into a
// Chord. The grammar is closed and case-sensitive: every token before the last
// must be one of Cmd, Super, Alt, Ctrl or Shift, and the last token must name a
// key from the fixed key table.
func Parse(input string) (Chord, error) {
	if strings.TrimSpace(input) == "" {
		return Chord{}, &ParseError{Input: input, Err: ErrEmpty}
	}

	parts := strings.Split(input, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var mods Modifier
	for _, token := range parts[:len(parts)-1] {
		if token == "" {
			return Chord{}, &ParseError{Input: input, Err: ErrEmpty}
		}
		mod, ok := modifierTokens[token]
		if !ok {
			return Chord{}, &ParseError{Input: input, Token: token, Err: ErrUnknownModifier}
		}
		mods |= mod
	}

	keyToken := parts[len(parts)-1]
	if keyToken == "" {
		return Chord{}, &ParseError{Input: input, Err: ErrEmpty}
	}
	key, ok := keyTokens[keyToken]
	if !ok {
		return Chord{}, &ParseError{Input: input, Token: keyToken, Err: ErrUnknownKey}
	}

	return Chord{Modifiers: mods, Key: key}, nil
}

// MustParse is like Parse but panics on error. Intended for static tables.
func MustParse(input string) Chord {
	chord, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return chord
}
