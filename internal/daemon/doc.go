// Package daemon ties the queue store and workflow manager into a single
// lifecycle with flock-based locking to prevent multiple spotd instances
// from publishing through the same account.
package daemon
