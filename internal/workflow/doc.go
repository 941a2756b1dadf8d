// Package workflow runs the daemon's background loops: draining approved
// messages one at a time under an hourly budget, and firing the daily
// compilation batch at its scheduled time.
package workflow
