package browser

import "github.com/go-rod/rod/lib/input"

// namedKeys maps DOM key values onto Rod's US layout.
var namedKeys = map[string]input.Key{
	"Alt":        input.AltLeft,
	"Control":    input.ControlLeft,
	"Meta":       input.MetaLeft,
	"Shift":      input.ShiftLeft,
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"Escape":     input.Escape,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Space":      input.Space,
}

// rodKey resolves a DOM key value. Printable ASCII characters map to
// themselves; everything else must be a named key.
func rodKey(key string) (input.Key, bool) {
	if k, ok := namedKeys[key]; ok {
		return k, true
	}
	if len(key) == 1 && key[0] >= 0x20 && key[0] <= 0x7e {
		return input.Key(key[0]), true
	}
	return 0, false
}
