// Package server exposes watch state over HTTP.
//
// Routes are mounted on a chi router with request ids, request logging,
// CORS and panic recovery. JSON shapes live in package api.
package server
