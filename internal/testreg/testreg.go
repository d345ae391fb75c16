/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package testreg implements the ordered test name/index table: each
// entry pairs a name with the client and server functions that implement
// it. req_index is a position in this table and must agree on both ends
// of a connection.
package testreg

import "github.com/mark-e-deyoung/qperf/internal/session"

// ClientFn runs one test's client-side body against an already-negotiated
// Context.
type ClientFn func(*session.Context) error

// ServerFn runs one test's server-side body against an already-negotiated
// Context.
type ServerFn func(*session.Context) error

// Entry is one registered test.
type Entry struct {
	Name   string
	Client ClientFn
	Server ServerFn
}

// Registry is the dense, declaration-ordered test table.
type Registry struct {
	entries []Entry
}

// New returns an empty test registry.
func New() *Registry {
	return &Registry{}
}

// Register appends a new test and returns its index (its req_index).
func (r *Registry) Register(name string, client ClientFn, server ServerFn) int {
	idx := len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Client: client, Server: server})
	return idx
}

// ByName looks up a test by name, for the client side.
func (r *Registry) ByName(name string) (int, *Entry, bool) {
	for i, e := range r.entries {
		if e.Name == name {
			return i, &r.entries[i], true
		}
	}
	return 0, nil, false
}

// ByIndex looks up a test by req_index, for the server side.
func (r *Registry) ByIndex(idx int) (*Entry, bool) {
	if idx < 0 || idx >= len(r.entries) {
		return nil, false
	}
	return &r.entries[idx], true
}

// Len reports how many tests are registered.
func (r *Registry) Len() int { return len(r.entries) }

// Names returns every registered test name, in table order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}
