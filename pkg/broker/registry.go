// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package broker

import (
	"net"
	"strings"

	"github.com/7ched7/trakd/pkg/wire"
)

// Status of a tracked process.
type Status string

// Tracked-process states.
const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// record is one tracked-process entry. conn is the tracker's session,
// exclusively owned by the broker while the entry exists; it is only ever
// written to push the stop token.
type record struct {
	processName string
	pid         *int32
	trackerPid  int32
	startTime   string
	status      Status
	conn        net.Conn
}

// regEntry pairs an id with its record for ordered snapshots.
type regEntry struct {
	id  string
	rec record
}

// registry is the insertion-ordered id → record mapping. It is not
// goroutine safe; the server serializes access with its mutex.
type registry struct {
	limit int
	ids   []string
	recs  map[string]*record
}

func newRegistry(limit int) *registry {
	return &registry{
		limit: limit,
		recs:  make(map[string]*record),
	}
}

func (r *registry) len() int {
	return len(r.ids)
}

// add admits a record per the admission rules: the limit is checked first,
// then id uniqueness, then process uniqueness, both case-insensitive.
// The returned token is the wire response.
func (r *registry) add(id string, rec *record) string {
	if r.len() >= r.limit {
		return wire.TokenLimit
	}
	for _, existing := range r.ids {
		if strings.EqualFold(existing, id) {
			return wire.TokenDuplicateID
		}
	}
	for _, existing := range r.ids {
		if strings.EqualFold(r.recs[existing].processName, rec.processName) {
			return wire.TokenDuplicateProcess
		}
	}
	r.ids = append(r.ids, id)
	r.recs[id] = rec
	return wire.TokenOK
}

// updateByProcess sets status and pid on the entry whose process name
// matches exactly. A miss is a no-op.
func (r *registry) updateByProcess(processName string, status Status, pid *int32) {
	for _, id := range r.ids {
		rec := r.recs[id]
		if rec.processName == processName {
			rec.status = status
			rec.pid = pid
			return
		}
	}
}

// remove deletes the entry under its exact id.
func (r *registry) remove(id string) (*record, bool) {
	rec, ok := r.recs[id]
	if !ok {
		return nil, false
	}
	delete(r.recs, id)
	for i, existing := range r.ids {
		if existing == id {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
	return rec, true
}

// rename rekeys an entry in place, preserving its position and record. The
// new id collision check is exact-match on purpose, unlike add's.
func (r *registry) rename(id, newID string) string {
	rec, ok := r.recs[id]
	if !ok {
		return wire.TokenError
	}
	if _, exists := r.recs[newID]; exists {
		return wire.TokenDuplicate
	}
	for i, existing := range r.ids {
		if existing == id {
			r.ids[i] = newID
			break
		}
	}
	delete(r.recs, id)
	r.recs[newID] = rec
	return wire.TokenOK
}

// snapshot copies the entries in insertion order.
func (r *registry) snapshot() []regEntry {
	entries := make([]regEntry, 0, len(r.ids))
	for _, id := range r.ids {
		entries = append(entries, regEntry{id: id, rec: *r.recs[id]})
	}
	return entries
}

// clear empties the registry and returns what it held.
func (r *registry) clear() []regEntry {
	entries := r.snapshot()
	r.ids = nil
	r.recs = make(map[string]*record)
	return entries
}

// counts returns how many entries are running and stopped.
func (r *registry) counts() (running, stopped int) {
	for _, rec := range r.recs {
		if rec.status == StatusRunning {
			running++
		} else {
			stopped++
		}
	}
	return running, stopped
}
