// Package database stores reading history.
//
// Two backends implement Store:
//   - PostgreSQL through a pgx connection pool, for shared deployments
//   - SQLite (pure Go), for a single watcher with a local file
package database
