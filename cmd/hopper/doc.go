// Command hopper runs the file ingestion daemon and talks to it.
//
// `hopper daemon` runs the daemon in the foreground; every other command
// reaches a running daemon over its Unix socket. `hopper start` launches a
// background daemon first when none is listening.
package main
