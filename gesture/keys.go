package gesture

import (
	"runtime"
	"strings"
)

// Modifier key names accepted by click options.
const (
	Alt           = "Alt"
	Control       = "Control"
	Meta          = "Meta"
	Shift         = "Shift"
	ControlOrMeta = "ControlOrMeta"
)

// ResolveModifier maps a modifier name onto the key actually pressed on
// goos. ControlOrMeta becomes Meta on darwin and Control elsewhere. ok is
// false for names that are not modifiers.
func ResolveModifier(name, goos string) (key string, ok bool) {
	switch name {
	case Alt, Control, Meta, Shift:
		return name, true
	case ControlOrMeta:
		if goos == "darwin" {
			return Meta, true
		}
		return Control, true
	}
	return "", false
}

// ParseCombo splits a key combination such as "Control+Shift+A" into its
// keys, in press order. A '+' that follows another separator is the plus
// key itself, so "Control++" yields ["Control", "+"]. Empty parts are
// dropped.
func ParseCombo(combo string) []string {
	var keys []string
	var cur strings.Builder
	sep := true
	for _, r := range combo {
		if r == '+' && !sep {
			keys = append(keys, cur.String())
			cur.Reset()
			sep = true
			continue
		}
		cur.WriteRune(r)
		sep = false
	}
	if cur.Len() > 0 {
		keys = append(keys, cur.String())
	}

	out := keys[:0]
	for _, k := range keys {
		if k != " " {
			k = strings.TrimSpace(k)
		}
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func hostOS() string { return runtime.GOOS }
