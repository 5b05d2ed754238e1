package editor

import "github.com/cmdbridge/cmdbridge/bridge"

// KeymapReachability reports an identity reachable while a mapping's rhs
// mentions it.
func KeymapReachability(e *Editor) bridge.ReachabilityFunc {
	return func() (bridge.Predicate, error) {
		kms := e.Keymaps()
		texts := make([]string, len(kms))
		for i, km := range kms {
			texts[i] = km.RHS
		}
		return bridge.MentionedIn(texts), nil
	}
}

// UserCommandReachability reports an identity reachable while a user
// command's replacement mentions it.
func UserCommandReachability(e *Editor) bridge.ReachabilityFunc {
	return func() (bridge.Predicate, error) {
		ucs := e.UserCommands()
		texts := make([]string, len(ucs))
		for i, uc := range ucs {
			texts[i] = uc.Replacement
		}
		return bridge.MentionedIn(texts), nil
	}
}

// AutocmdReachability reports an identity reachable while an
// autocommand's command mentions it.
func AutocmdReachability(e *Editor) bridge.ReachabilityFunc {
	return func() (bridge.Predicate, error) {
		acs := e.Autocmds()
		texts := make([]string, len(acs))
		for i, a := range acs {
			texts[i] = a.Command
		}
		return bridge.MentionedIn(texts), nil
	}
}

// Reachability combines the keymap, user command and autocommand
// generators.
func Reachability(e *Editor) bridge.ReachabilityFunc {
	return bridge.AnyOf(KeymapReachability(e), UserCommandReachability(e), AutocmdReachability(e))
}
