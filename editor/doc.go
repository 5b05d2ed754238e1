// Package editor is a small in-memory command-line editor host. It gives the
// bridge and the command proxies something real to run against: an
// Executor that parses command lines, a dispatch table of functions the
// command language can call, and host state (keymaps, user commands and
// autocommands) that mentions those functions by name.
//
// The command language is a subset of a Vim-style Ex line:
//
//	echo "a" 'b' 42 Upper("x") .. "y"
//	call Notify("saved")
//	nnoremap <silent> gx :call BridgeFn_3f9a1c2e_1_()<CR>
//	command! -nargs=1 -bang Greet echo <q-args>
//	autocmd BufReadPost *.go ++once echo "go file"
//	doautocmd BufReadPost main.go
//	edit ++enc=utf-8 +10 main.go
//
// Errors carry the host's error codes (E492 for unknown commands, E117 for
// unknown functions and so on) in a domain ExecError.
//
// An Editor is not safe for concurrent use. It is re-entrant: a function
// called from a command line may execute further command lines.
package editor
