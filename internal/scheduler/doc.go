// Package scheduler drives the poll loop: list the input directory, process
// every file of the batch concurrently, wait for all of them, then sleep.
//
// Batches never overlap. Stop cancels the loop between batches; a batch that
// is already running completes before Stop returns, so no file is left
// half-processed.
package scheduler
