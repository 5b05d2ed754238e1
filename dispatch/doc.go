// Package dispatch provides the host dispatch table: a string-keyed registry
// of endpoints that the execution substrate consults to resolve a function
// name to something it can invoke with positional arguments.
//
// The table is mutable (endpoints come and go as callables are exposed and
// reclaimed) and is not safe for concurrent use. Invocations may re-enter the
// table: an endpoint can run commands that invoke further endpoints.
package dispatch
