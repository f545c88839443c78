// Package driftbase is a client library for drift-compatible record storage
// servers: JSON records organized in buckets and collections, versioned with
// opaque tokens.
//
// The client tracks the version tokens of every resource it touches and turns
// them into conditions on later writes, so concurrent modifications surface
// as conflicts instead of silently overwriting each other. Token stores are
// pluggable; in-memory, bbolt and badger backed stores ship with the module.
//
// The main entry point is the client package:
//
//	c, err := client.New(&client.Options{
//		ServerURL: "https://records.example.com",
//	})
//
// See the client, ref, record and query packages for the full API surface.
package driftbase
