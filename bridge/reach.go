package bridge

import "strings"

// Predicate decides whether an identity might still be referenced.
type Predicate func(id string) bool

// ReachabilityFunc inspects current host state and returns a Predicate.
// It is called once per collection.
type ReachabilityFunc func() (Predicate, error)

// Referenced is a ReachabilityFunc that reports every identity as reachable.
func Referenced() (Predicate, error) {
	return func(string) bool { return true }, nil
}

// Unreferenced is a ReachabilityFunc that reports every identity as
// unreachable.
func Unreferenced() (Predicate, error) {
	return func(string) bool { return false }, nil
}

// AnyOf combines generators: an identity is reachable when any of them says
// so. Generators are evaluated eagerly, once per collection.
func AnyOf(gens ...ReachabilityFunc) ReachabilityFunc {
	return func() (Predicate, error) {
		preds := make([]Predicate, 0, len(gens))
		for _, gen := range gens {
			pred, err := gen()
			if err != nil {
				return nil, err
			}
			preds = append(preds, pred)
		}
		return func(id string) bool {
			for _, pred := range preds {
				if pred(id) {
					return true
				}
			}
			return false
		}, nil
	}
}

// MentionedIn returns a Predicate reporting an identity as reachable when any
// of texts contains it.
func MentionedIn(texts []string) Predicate {
	return func(id string) bool {
		for _, text := range texts {
			if strings.Contains(text, id) {
				return true
			}
		}
		return false
	}
}
