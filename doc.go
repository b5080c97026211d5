// Package aitemplate is a Go client for the aitemplate chat backend.
//
// The streaming chat client lives in pkg/stream (wire decoding and session
// lifecycle) and pkg/httpclient (transport and the REST surface). The root
// package only carries the shared error codes.
package aitemplate
