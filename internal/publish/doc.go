// Package publish sequences one message through render, upload, and status
// update, and runs the daily compilation batch. It is the only place status
// transitions are decided; collaborators report outcomes, the orchestrator
// writes them.
package publish
