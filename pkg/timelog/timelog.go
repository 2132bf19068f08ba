// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package timelog persists per-day lists of process run intervals. Each
// calendar day is one text file named YYYYMMDD holding lines of
// `process|start|end`, with the literal `None` as the end of a still-open
// interval. Writers rewrite whole files under the directory lock; recovery
// relies on the tracker's checkpoint discipline, not on journaling.
package timelog

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// TimeLayout formats interval timestamps: microsecond precision, trailing
// zeros (and the dot) trimmed when the fraction is zero.
const TimeLayout = "2006-01-02 15:04:05.999999"

const parseLayout = "2006-01-02 15:04:05"

const openEndLiteral = "None"

// Interval is one continuous run. A zero End means the interval is open.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Open reports whether the interval has no end yet.
func (iv Interval) Open() bool {
	return iv.End.IsZero()
}

// Duration returns End-Start, substituting now for an open end.
func (iv Interval) Duration(now time.Time) time.Duration {
	end := iv.End
	if iv.Open() {
		end = now
	}
	return end.Sub(iv.Start)
}

// DayLog is the in-memory form of one day file: intervals keyed by process
// name, processes kept in first-appearance order so rewrites are stable.
type DayLog struct {
	order []string
	procs map[string][]Interval
}

// NewDayLog returns an empty day log.
func NewDayLog() *DayLog {
	return &DayLog{procs: make(map[string][]Interval)}
}

// Processes returns the process names in file order.
func (d *DayLog) Processes() []string {
	return d.order
}

// Intervals returns the recorded intervals for one process, in append order.
func (d *DayLog) Intervals(process string) []Interval {
	return d.procs[process]
}

// Len returns the number of processes with at least one interval.
func (d *DayLog) Len() int {
	return len(d.order)
}

// Append adds an interval at the end of a process's list.
func (d *DayLog) Append(process string, iv Interval) {
	if _, ok := d.procs[process]; !ok {
		d.order = append(d.order, process)
	}
	d.procs[process] = append(d.procs[process], iv)
}

// Replace substitutes a process's whole interval list.
func (d *DayLog) Replace(process string, ivs []Interval) {
	if _, ok := d.procs[process]; !ok {
		d.order = append(d.order, process)
	}
	d.procs[process] = ivs
}

// CloseLast sets the end of a process's last interval. When the process has
// no interval on this day, one covering [fallbackStart, end] is appended so
// a close after a lost open marker still leaves a consistent record.
func (d *DayLog) CloseLast(process string, fallbackStart, end time.Time) {
	ivs := d.procs[process]
	if len(ivs) == 0 {
		d.Append(process, Interval{Start: fallbackStart, End: end})
		return
	}
	ivs[len(ivs)-1].End = end
}

// Manager reads and rewrites the day files of one user's log directory.
// Every operation takes the directory lock, shared with all other writers.
type Manager struct {
	dir  string
	lock *flock.Flock
}

// NewManager returns a manager over the given per-user directory.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, "lck.lock")),
	}
}

// Dir returns the managed directory.
func (m *Manager) Dir() string {
	return m.dir
}

// ReadDay loads the file for the given calendar day. A missing file is an
// empty log; lines that do not split into three fields are skipped.
func (m *Manager) ReadDay(day time.Time) (*DayLog, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.lock.Unlock()
	return m.readDayLocked(day), nil
}

// SaveStart opens a new interval for the process in the day file of start.
func (m *Manager) SaveStart(process string, start time.Time) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.lock.Unlock()

	day := m.readDayLocked(start)
	day.Append(process, Interval{Start: start.Truncate(time.Microsecond)})
	return m.writeDayLocked(start, day)
}

// SaveEnd closes the process's current interval. When start and end share a
// calendar date this updates a single file; otherwise every day the run
// touched is rewritten so each day file is self-contained:
// the start day's last interval ends at 23:59:59.999999, every intermediate
// day holds one full-day interval, and the end day holds [00:00:00, end].
func (m *Manager) SaveEnd(process string, start, end time.Time) error {
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.lock.Unlock()

	start = start.Truncate(time.Microsecond)
	end = end.Truncate(time.Microsecond)

	if sameDate(start, end) {
		day := m.readDayLocked(end)
		day.CloseLast(process, start, end)
		return m.writeDayLocked(end, day)
	}

	for d := startOfDay(start); !d.After(startOfDay(end)); d = d.AddDate(0, 0, 1) {
		day := m.readDayLocked(d)
		switch {
		case sameDate(d, start):
			day.CloseLast(process, start, endOfDay(d))
		case sameDate(d, end):
			day.Replace(process, []Interval{{Start: d, End: end}})
		default:
			day.Replace(process, []Interval{{Start: d, End: endOfDay(d)}})
		}
		if err := m.writeDayLocked(d, day); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) acquire() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}
	if err := m.lock.Lock(); err != nil {
		return errors.Wrap(err, "locking log directory")
	}
	return nil
}

func (m *Manager) readDayLocked(day time.Time) *DayLog {
	out := NewDayLog()
	data, err := os.ReadFile(m.dayPath(day))
	if err != nil {
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 3 {
			continue
		}
		start, err := parseTime(fields[1])
		if err != nil {
			continue
		}
		iv := Interval{Start: start}
		if endField := strings.TrimSpace(fields[2]); endField != openEndLiteral {
			end, err := parseTime(endField)
			if err != nil {
				continue
			}
			iv.End = end
		}
		out.Append(strings.TrimSpace(fields[0]), iv)
	}
	return out
}

func (m *Manager) writeDayLocked(day time.Time, log *DayLog) error {
	var b strings.Builder
	for _, process := range log.Processes() {
		for _, iv := range log.Intervals(process) {
			endField := openEndLiteral
			if !iv.Open() {
				endField = iv.End.Format(TimeLayout)
			}
			b.WriteString(process)
			b.WriteByte('|')
			b.WriteString(iv.Start.Format(TimeLayout))
			b.WriteByte('|')
			b.WriteString(endField)
			b.WriteByte('\n')
		}
	}
	if err := os.WriteFile(m.dayPath(day), []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, "writing day file")
	}
	return nil
}

func (m *Manager) dayPath(day time.Time) string {
	return filepath.Join(m.dir, day.Format("20060102"))
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(parseLayout, strings.TrimSpace(s), time.Local)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999000, t.Location())
}
