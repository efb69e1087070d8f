// Package server hosts the Fiber HTTP service and its middleware chain:
// request IDs, panic recovery, access logging and JSON error rendering.
// Route handlers live in the routes subpackage and receive their
// dependencies explicitly, so keep exports here narrow.
package server
