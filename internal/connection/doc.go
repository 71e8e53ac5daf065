// Package connection consumes the watcher's websocket stream.
//
// Client owns one connection and its heartbeat. Follower keeps a Client
// alive across drops, reconnecting with exponential backoff, and decodes
// each frame into an Update.
package connection
