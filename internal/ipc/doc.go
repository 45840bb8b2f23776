// Package ipc is the daemon's control plane: JSON-RPC over a Unix domain
// socket, with a typed client for the CLI. An HTTP gateway for worker
// callbacks would sit in front of the same daemon methods.
package ipc
