// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package report aggregates the per-day interval logs into per-process
// totals over a date range. Each day file is self-contained (midnight
// spanning is resolved at write time), so aggregation is a single pass.
package report

import (
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/7ched7/trakd/pkg/timelog"
)

// Span selects the reporting window, always ending today.
type Span int

// Available spans.
const (
	Daily   Span = iota // today
	Weekly              // last 7 calendar days
	Monthly             // last 30 calendar days
)

// Days returns the number of calendar days the span covers.
func (s Span) Days() int {
	switch s {
	case Weekly:
		return 7
	case Monthly:
		return 30
	default:
		return 1
	}
}

func (s Span) String() string {
	switch s {
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return "daily"
	}
}

// Entry is the aggregate for one process.
type Entry struct {
	Process    string
	Total      time.Duration
	ActiveDays int
}

// Generator scans one user's log directory.
type Generator struct {
	logs *timelog.Manager
	clk  clock.Clock
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock substitutes the time source.
func WithClock(clk clock.Clock) Option {
	return func(g *Generator) {
		g.clk = clk
	}
}

// NewGenerator returns a generator over the given interval-log manager.
func NewGenerator(logs *timelog.Manager, opts ...Option) *Generator {
	g := &Generator{logs: logs, clk: clock.New()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate aggregates the span's day files: per process, the summed run
// time (open ends count up to now) and the number of distinct days with at
// least one recorded start. Entries are sorted by process name.
func (g *Generator) Generate(span Span) ([]Entry, error) {
	now := g.clk.Now()
	totals := make(map[string]time.Duration)
	activeDays := make(map[string]map[string]struct{})

	for offset := span.Days() - 1; offset >= 0; offset-- {
		day, err := g.logs.ReadDay(now.AddDate(0, 0, -offset))
		if err != nil {
			return nil, err
		}
		for _, process := range day.Processes() {
			for _, iv := range day.Intervals(process) {
				totals[process] += iv.Duration(now)
				if activeDays[process] == nil {
					activeDays[process] = make(map[string]struct{})
				}
				activeDays[process][iv.Start.Format("20060102")] = struct{}{}
			}
		}
	}

	entries := make([]Entry, 0, len(totals))
	for process, total := range totals {
		days := len(activeDays[process])
		if days < 1 {
			days = 1
		}
		entries = append(entries, Entry{Process: process, Total: total, ActiveDays: days})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Process < entries[j].Process
	})
	return entries, nil
}
