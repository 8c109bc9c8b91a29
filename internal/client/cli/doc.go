// Package cli is the fieldsync command line.
//
// Every command shares one lazily built App: the local store, the session
// manager and the services on top of them. One-shot commands (login,
// capture, sync, status, show, choices, cleanup) log in with --pin or a
// prompt when they need a user. The shell command keeps a session open
// between commands, and run drives the background loops until interrupted.
package cli
