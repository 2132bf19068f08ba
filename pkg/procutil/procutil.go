// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package procutil enumerates OS processes for target matching and the
// local process listing. Attribute lookups are cached per process object and
// the fetcher is swappable so tests can inject synthetic process tables.
package procutil

import (
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/7ched7/trakd/pkg/util/log"
)

// Process is one enumerated process with lazily fetched, cached attributes.
// Attribute errors degrade to empty values; pid is always present.
type Process struct {
	inner    *process.Process
	pid      int32
	name     string
	exe      string
	cmdline  []string
	username string
}

// NewProcess wraps a live gopsutil process.
func NewProcess(p *process.Process) *Process {
	return &Process{inner: p, pid: p.Pid}
}

// NewFakeProcess builds a process from fixed attributes, for tests.
func NewFakeProcess(pid int32, name, exe string, cmdline []string) *Process {
	return &Process{pid: pid, name: name, exe: exe, cmdline: cmdline}
}

// Pid returns the process id.
func (p *Process) Pid() int32 {
	return p.pid
}

// Name returns the process name, or "" when it cannot be read.
func (p *Process) Name() string {
	if p.name != "" || p.inner == nil {
		return p.name
	}
	name, err := p.inner.Name()
	if err != nil {
		log.Debugf("failed to fetch process (pid=%d) name: %v", p.pid, err)
		return ""
	}
	p.name = name
	return name
}

// Exe returns the executable path, or "" when it cannot be read.
func (p *Process) Exe() string {
	if p.exe != "" || p.inner == nil {
		return p.exe
	}
	exe, err := p.inner.Exe()
	if err != nil {
		log.Debugf("failed to fetch process (pid=%d) exe: %v", p.pid, err)
		return ""
	}
	p.exe = exe
	return exe
}

// CmdlineSlice returns the command line, or nil when it cannot be read.
func (p *Process) CmdlineSlice() []string {
	if p.cmdline != nil || p.inner == nil {
		return p.cmdline
	}
	cmdline, err := p.inner.CmdlineSlice()
	if err != nil {
		log.Debugf("failed to fetch process (pid=%d) cmdline: %v", p.pid, err)
		return nil
	}
	p.cmdline = cmdline
	return cmdline
}

// Username returns the owning user, or "-" when it cannot be read.
func (p *Process) Username() string {
	if p.username != "" {
		return p.username
	}
	if p.inner == nil {
		return "-"
	}
	username, err := p.inner.Username()
	if err != nil || username == "" {
		return "-"
	}
	p.username = username
	return username
}

// Processes is an enumeration snapshot.
type Processes []*Process

// processFetcher is swapped out by tests.
var processFetcher = fetchProcesses

func fetchProcesses() (Processes, error) {
	inners, err := process.Processes()
	if err != nil {
		return nil, err
	}
	res := make(Processes, 0, len(inners))
	for _, p := range inners {
		res = append(res, NewProcess(p))
	}
	return res, nil
}

// Snapshot enumerates the live process table.
func Snapshot() (Processes, error) {
	return processFetcher()
}

// FindByName returns the processes whose name matches case-insensitively.
func (ps Processes) FindByName(name string) Processes {
	return ps.find(func(p *Process) bool {
		return strings.EqualFold(p.Name(), name)
	})
}

// FindByPid returns the process with the exact pid, or nil.
func (ps Processes) FindByPid(pid int32) *Process {
	matches := ps.find(func(p *Process) bool { return p.Pid() == pid })
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func (ps Processes) find(match func(*Process) bool) Processes {
	results := make(Processes, 0)
	for _, p := range ps {
		if match(p) {
			results = append(results, p)
		}
	}
	return results
}

// Exclusion rejects processes that must never be matched as targets.
type Exclusion struct {
	SelfPid    int32
	DaemonExe  string // executable path of this binary
	DaemonName string // binary name looked for in command lines
}

// Excluded reports whether p belongs to the tracking machinery itself.
func (e Exclusion) Excluded(p *Process) bool {
	if p.Pid() == e.SelfPid {
		return true
	}
	if e.DaemonExe != "" && p.Exe() == e.DaemonExe {
		return true
	}
	if e.DaemonName != "" {
		for _, arg := range p.CmdlineSlice() {
			if strings.Contains(strings.ToLower(arg), strings.ToLower(e.DaemonName)) {
				return true
			}
		}
	}
	return false
}

// FindTarget resolves a user-supplied target, a pid or a case-insensitive
// process name, against the live process table, skipping excluded
// processes. It returns nil when nothing matches.
func FindTarget(target string, excl Exclusion) (*Process, error) {
	ps, err := Snapshot()
	if err != nil {
		return nil, err
	}
	return ps.FindTarget(target, excl), nil
}

// FindTarget is the snapshot-level form of the package function.
func (ps Processes) FindTarget(target string, excl Exclusion) *Process {
	if pid, err := strconv.ParseInt(target, 10, 32); err == nil {
		p := ps.FindByPid(int32(pid))
		if p != nil && !excl.Excluded(p) {
			return p
		}
		return nil
	}
	for _, p := range ps.FindByName(target) {
		if !excl.Excluded(p) {
			return p
		}
	}
	return nil
}
