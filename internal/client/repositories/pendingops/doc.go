// Package pendingops persists the queue of non-record background writes
// (such as the last-login update) that are retried by the sync pass.
package pendingops
