// Package store provides sqlite-backed persistence for users and
// tasks. All timestamps are stored as RFC 3339 strings in UTC.
package store
