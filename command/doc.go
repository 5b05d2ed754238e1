// Package command turns loosely-typed call arguments into editor command
// lines.
//
// A Proxy stands for one command name. Calling it runs the proxy's ordered
// Handlers over an argument cursor; each handler takes zero or more
// arguments and emits zero or more tokens. Arguments left over are drained by
// the catch-all Rest handler. The tokens, joined by the proxy's separator,
// follow the command name on the command line handed to the Executor, with a
// Pre hook before execution and a Post hook shaping the result.
//
//	proxies := command.NewProxies(ed)
//	echo := proxies.MustGet("echo")
//	echo.Handlers = []command.Handler{command.DoubleQuoted}
//	echo.Rest = command.DoubleQuoted
//	echo.Call(ctx, "Hello, world!") // runs: echo "Hello, world!"
//
// A handler that finds the cursor empty returns Exhausted. That is not an
// error: the pipeline stops there and the command runs with the tokens
// emitted so far, so commands can be called with fewer arguments than they
// have handlers.
package command
