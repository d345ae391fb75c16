/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package params implements the typed parameter registry: one entry per
// tunable, with local/remote storage pairs and set/used/inuse tracking.
package params

import "fmt"

// Kind is the semantic type of a parameter's value.
type Kind int

const (
	KindLong Kind = iota
	KindString
	KindSize
	KindTime
)

// Null is the explicit "no storage here" sentinel for the loc-only/rem-only
// option variants. It is never a valid registry index and must never be
// passed to any Registry method that dereferences an index.
const Null = -1

// Par is one parameter table entry. Numeric kinds (Long, Size, Time) read
// and write through a pair of accessor closures bound to the underlying
// storage cell (a field in a Req or RReq); String reads and writes through
// a second closure pair. Exactly one pair is populated, matching Kind.
type Par struct {
	Index int
	Kind  Kind

	// Name is the display name, empty until a setp_* call names it.
	Name  string
	Set   bool
	Used  bool
	Inuse bool

	getU64 func() uint64
	setU64 func(uint64)
	getStr func() string
	setStr func(string) error
}

// Registry is the dense, declaration-ordered parameter table.
type Registry struct {
	pars []*Par
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// addNumeric appends a Long/Size/Time parameter with its index set to its
// position, per the dense-and-in-declaration-order invariant (which Par
// checks on every access).
func (r *Registry) addNumeric(kind Kind, get func() uint64, set func(uint64)) int {
	idx := len(r.pars)
	r.pars = append(r.pars, &Par{Index: idx, Kind: kind, getU64: get, setU64: set})
	return idx
}

// AddLong registers a plain integer parameter.
func (r *Registry) AddLong(get func() uint64, set func(uint64)) int {
	return r.addNumeric(KindLong, get, set)
}

// AddSize registers a byte-count parameter (k/m/g/K/M/G suffix parsing
// happens in the option layer; the registry only stores the resolved
// value).
func (r *Registry) AddSize(get func() uint64, set func(uint64)) int {
	return r.addNumeric(KindSize, get, set)
}

// AddTime registers a duration-in-seconds parameter.
func (r *Registry) AddTime(get func() uint64, set func(uint64)) int {
	return r.addNumeric(KindTime, get, set)
}

// AddString registers a fixed-buffer string parameter.
func (r *Registry) AddString(get func() string, set func(string) error) int {
	idx := len(r.pars)
	r.pars = append(r.pars, &Par{Index: idx, Kind: KindString, getStr: get, setStr: set})
	return idx
}

// Par returns the entry at idx. Panics on out-of-range index: an
// out-of-order or out-of-range registry access is an internal invariant
// violation, not a recoverable user error.
func (r *Registry) Par(idx int) *Par {
	if idx < 0 || idx >= len(r.pars) {
		panic(fmt.Sprintf("internal error: parameter index %d out of range [0,%d)", idx, len(r.pars)))
	}
	p := r.pars[idx]
	if p.Index != idx {
		panic(fmt.Sprintf("internal error: parameter table out of order at %d", idx))
	}
	return p
}

// Len reports how many parameters are registered.
func (r *Registry) Len() int { return len(r.pars) }

// SetvU32 silently writes a numeric parameter's storage without touching
// set/used/name bookkeeping. For internal use by the control layer
// (defaulting, reinitialization) only.
func (r *Registry) SetvU32(idx int, v uint64) {
	if idx == Null {
		return
	}
	p := r.Par(idx)
	if p.setU64 == nil {
		panic(fmt.Sprintf("internal error: SetvU32 on non-numeric parameter %d", idx))
	}
	p.setU64(v)
}

// SetpU32 records a user-visible numeric assignment: name is stored on the
// first call for this storage cell; subsequent calls pass "" for name to
// mark the cell used without overwriting the name already stored there.
func (r *Registry) SetpU32(idx int, name string, v uint64) {
	if idx == Null {
		return
	}
	p := r.Par(idx)
	if p.setU64 == nil {
		panic(fmt.Sprintf("internal error: SetpU32 on non-numeric parameter %d", idx))
	}
	p.setU64(v)
	if name == "" {
		p.Used = true
		p.Inuse = true
		return
	}
	if p.Name == "" {
		p.Name = name
	}
	p.Set = true
}

// SetpStr records a user-visible string assignment. Strings longer than
// STRSIZE-1 are rejected by the setter supplied at registration (which
// knows the buffer size); SetpStr propagates that error and leaves the
// name and Set flag untouched.
func (r *Registry) SetpStr(idx int, name string, s string) error {
	if idx == Null {
		return nil
	}
	p := r.Par(idx)
	if p.setStr == nil {
		panic(fmt.Sprintf("internal error: SetpStr on non-string parameter %d", idx))
	}
	if err := p.setStr(s); err != nil {
		return err
	}
	if p.Name == "" && name != "" {
		p.Name = name
	}
	p.Set = true
	return nil
}

// ParUse marks idx used and currently relevant.
func (r *Registry) ParUse(idx int) {
	if idx == Null {
		return
	}
	p := r.Par(idx)
	p.Used = true
	p.Inuse = true
}

// ParIsSet reports whether a display name has ever been stored for idx,
// i.e. whether a user or test explicitly set it.
func (r *Registry) ParIsSet(idx int) bool {
	if idx == Null {
		return false
	}
	return r.Par(idx).Name != ""
}

// ClearInuse clears the Inuse flag on every parameter. Called at the start
// of client test setup, before the chosen test marks the parameters it
// actually reads as in-use.
func (r *Registry) ClearInuse() {
	for _, p := range r.pars {
		p.Inuse = false
	}
}

// ValueU64 returns the current numeric value of idx.
func (r *Registry) ValueU64(idx int) uint64 {
	p := r.Par(idx)
	return p.getU64()
}

// ValueStr returns the current string value of idx.
func (r *Registry) ValueStr(idx int) string {
	p := r.Par(idx)
	return p.getStr()
}

// UnusedWarning is one "set but not used" diagnostic.
type UnusedWarning struct {
	Name string
}

// WarnUnused reports every parameter whose Set is true but Used is false,
// once per display name, then clears Set on any later entry sharing that
// name (the loc/rem pairing) so it is not reported twice.
func (r *Registry) WarnUnused(testName string) []UnusedWarning {
	var warnings []UnusedWarning
	warned := make(map[string]bool)
	for _, p := range r.pars {
		if !p.Set || p.Used {
			continue
		}
		if warned[p.Name] {
			p.Set = false
			continue
		}
		warnings = append(warnings, UnusedWarning{Name: p.Name})
		warned[p.Name] = true
	}
	return warnings
}
