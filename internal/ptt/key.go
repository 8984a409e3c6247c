// Package ptt turns push-to-talk key events from outside the bot into
// calls on the voice manager, and serves the local control endpoint that
// carries them.
package ptt

import "strings"

// NormalizeKey canonicalises a key name so that names reported by
// different hook tools compare equal.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.Join(strings.Fields(key), " ")

	switch key {
	case "numpad3", "numpad_3", "numpad 3", "num3", "num_3", "kp3", "kp_3":
		return "num 3"
	case "control", "ctrl", "left ctrl", "left control", "lctrl":
		return "ctrl"
	case "right ctrl", "right control", "rctrl":
		return "right ctrl"
	}

	// numpadN / kpN for the rest of the keypad digits.
	for _, prefix := range []string{"numpad", "kp", "num"} {
		rest := strings.TrimLeft(strings.TrimPrefix(key, prefix), " _")
		if rest != key && len(rest) == 1 && rest[0] >= '0' && rest[0] <= '9' {
			return "num " + rest
		}
	}
	return key
}
