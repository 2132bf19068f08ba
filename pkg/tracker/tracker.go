// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package tracker implements the per-target watcher process. A tracker owns
// one broker session and one target process name: it registers itself, then
// runs a connection loop (stop tokens in, updates and pings out) and an
// observation loop (presence transitions in the OS process table, interval
// log writes) until cancelled by signal, stop token or transport failure.
package tracker

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/7ched7/trakd/pkg/broker"
	"github.com/7ched7/trakd/pkg/procutil"
	"github.com/7ched7/trakd/pkg/timelog"
	"github.com/7ched7/trakd/pkg/util/log"
	"github.com/7ched7/trakd/pkg/wire"
)

// StartTimeLayout is the wall-clock format of the registry's start_time.
const StartTimeLayout = "2006-01-02 15:04:05"

// Default loop cadences.
const (
	defaultObserveEvery = time.Second
	defaultPollEvery    = time.Second
	defaultIdleSleep    = 10 * time.Second
	defaultCheckpoint   = 5 * time.Minute
)

// ErrNoSuchProcess means the target matched nothing trackable: no such
// pid/name, or only the tracking machinery itself.
var ErrNoSuchProcess = errors.New("no matching process to track")

// snapshotProcesses is swapped out by tests.
var snapshotProcesses = procutil.Snapshot

// Config names the target and the broker endpoint.
type Config struct {
	Target string // pid or case-insensitive process name
	ID     string // optional; minted when empty
	IP     string
	Port   int
}

// Tracker watches one process.
type Tracker struct {
	cfg  Config
	clk  clock.Clock
	logs *timelog.Manager

	observeEvery time.Duration
	pollEvery    time.Duration
	idleSleep    time.Duration
	checkpoint   time.Duration

	id          string
	processName string

	client *broker.Client
	queue  chan updateMsg

	cancel   *atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	mu             sync.Mutex
	startTime      time.Time
	lastPid        int32
	nextCheckpoint time.Time

	wg sync.WaitGroup
}

type updateMsg struct {
	status broker.Status
	pid    *int32
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock substitutes the time source.
func WithClock(clk clock.Clock) Option {
	return func(t *Tracker) {
		t.clk = clk
	}
}

// WithTimings shrinks the loop cadences; test use only.
func WithTimings(observe, poll, idle, checkpoint time.Duration) Option {
	return func(t *Tracker) {
		t.observeEvery = observe
		t.pollEvery = poll
		t.idleSleep = idle
		t.checkpoint = checkpoint
	}
}

// New returns a tracker writing intervals through logs.
func New(cfg Config, logs *timelog.Manager, opts ...Option) *Tracker {
	t := &Tracker{
		cfg:          cfg,
		clk:          clock.New(),
		logs:         logs,
		observeEvery: defaultObserveEvery,
		pollEvery:    defaultPollEvery,
		idleSleep:    defaultIdleSleep,
		checkpoint:   defaultCheckpoint,
		queue:        make(chan updateMsg, 64),
		cancel:       atomic.NewBool(false),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the tracking id, available once Run has registered.
func (t *Tracker) ID() string {
	return t.id
}

// ProcessName returns the resolved target name, available once Run has
// registered.
func (t *Tracker) ProcessName() string {
	return t.processName
}

// Run resolves the target, registers with the broker and watches until
// cancellation. It returns nil on a clean stop, an admission error when the
// broker refuses the target, and ErrNoSuchProcess when nothing matches.
func (t *Tracker) Run() error {
	target, err := t.findTarget()
	if err != nil {
		return err
	}
	t.processName = target.Name()
	t.lastPid = target.Pid()

	t.id = t.cfg.ID
	if t.id == "" {
		t.id = mintID()
	}

	client, err := broker.Dial(t.cfg.IP, t.cfg.Port)
	if err != nil {
		return err
	}
	t.client = client
	defer client.Close() // the tracker is the sole closer of its session

	pid := target.Pid()
	token, err := client.Add(t.id, broker.RecordPayload{
		ProcessName: t.processName,
		Pid:         &pid,
		TrackPid:    int32(os.Getpid()),
		StartTime:   t.clk.Now().Format(StartTimeLayout),
		Status:      string(broker.StatusRunning),
	})
	if err != nil {
		return err
	}
	if token != wire.TokenOK {
		return admissionError(token)
	}
	log.Infof("tracking %s (pid %d) as %s", t.processName, pid, t.id)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("tracker received %s, shutting down", sig)
			t.closeInterval(t.clk.Now())
			t.requestStop()
		case <-t.stopCh:
		}
	}()

	t.wg.Add(2)
	go t.connectionLoop()
	go t.observationLoop()
	t.wg.Wait()

	log.Infof("tracker %s exiting", t.id)
	return nil
}

// findTarget resolves the configured target against the process table,
// refusing the tracker itself, the daemon binary and anything whose command
// line mentions it.
func (t *Tracker) findTarget() (*procutil.Process, error) {
	excl := procutil.Exclusion{SelfPid: int32(os.Getpid())}
	if exe, err := os.Executable(); err == nil {
		excl.DaemonExe = exe
		excl.DaemonName = filepath.Base(exe)
	}

	snapshot, err := snapshotProcesses()
	if err != nil {
		return nil, errors.Wrap(err, "enumerating processes")
	}
	target := snapshot.FindTarget(t.cfg.Target, excl)
	if target == nil || target.Name() == "" {
		return nil, ErrNoSuchProcess
	}
	return target, nil
}

// connectionLoop polls the session every second. A stop token cancels the
// tracker; otherwise one queued update is sent, or a ping followed by the
// idle sleep when nothing is pending.
func (t *Tracker) connectionLoop() {
	defer t.wg.Done()

	for !t.cancel.Load() {
		data, err := wire.ReadWithin(t.client.Conn(), t.pollEvery)
		switch {
		case err == nil:
			if wire.Token(data) == wire.TokenStop {
				log.Debugf("tracker %s: stop received", t.id)
				t.requestStop()
				return
			}
		case !wire.IsTimeout(err):
			log.Debugf("tracker %s: session lost: %v", t.id, err)
			t.requestStop()
			return
		}

		select {
		case msg := <-t.queue:
			if err := t.client.Update(t.processName, msg.status, msg.pid); err != nil {
				log.Debugf("tracker %s: update failed: %v", t.id, err)
				t.requestStop()
				return
			}
		default:
			if err := t.client.Ping(); err != nil {
				log.Debugf("tracker %s: ping failed: %v", t.id, err)
				t.requestStop()
				return
			}
			t.sleep(t.idleSleep)
		}
	}
}

// observationLoop samples the process table every second and folds presence
// transitions into the interval log and the outbound queue.
func (t *Tracker) observationLoop() {
	defer t.wg.Done()

	for {
		if t.cancel.Load() {
			t.closeInterval(t.clk.Now())
			return
		}
		t.observe()
		t.sleep(t.observeEvery)
	}
}

// observe is one sampling iteration. Transitions are committed to the log
// and the queue before it returns.
func (t *Tracker) observe() {
	now := t.clk.Now()
	snapshot, err := snapshotProcesses()
	if err != nil {
		log.Debugf("tracker %s: process enumeration failed: %v", t.id, err)
		return
	}
	matches := snapshot.FindByName(t.processName)

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(matches) > 0 {
		pid := matches[0].Pid()
		if t.startTime.IsZero() {
			t.startTime = now
			if err := t.logs.SaveStart(t.processName, now); err != nil {
				log.Warnf("tracker %s: opening interval: %v", t.id, err)
			}
			// Immediately close at start so a crash loses at most a second.
			if err := t.logs.SaveEnd(t.processName, now, now); err != nil {
				log.Warnf("tracker %s: checkpointing new interval: %v", t.id, err)
			}
			t.nextCheckpoint = now.Add(t.checkpoint)
		}
		if pid != t.lastPid {
			t.lastPid = pid
			t.enqueue(updateMsg{status: broker.StatusRunning, pid: &pid})
		}
		if !t.startTime.IsZero() && !now.Before(t.nextCheckpoint) {
			if err := t.logs.SaveEnd(t.processName, t.startTime, now); err != nil {
				log.Warnf("tracker %s: checkpoint: %v", t.id, err)
			}
			t.nextCheckpoint = now.Add(t.checkpoint)
		}
		return
	}

	if !t.startTime.IsZero() {
		t.enqueue(updateMsg{status: broker.StatusStopped, pid: nil})
		if err := t.logs.SaveEnd(t.processName, t.startTime, now); err != nil {
			log.Warnf("tracker %s: closing interval: %v", t.id, err)
		}
		t.startTime = time.Time{}
		t.lastPid = 0
	}
}

func (t *Tracker) enqueue(msg updateMsg) {
	select {
	case t.queue <- msg:
	default:
		log.Debugf("tracker %s: update queue full, dropping %s", t.id, msg.status)
	}
}

// closeInterval closes the open interval at now, if any. Safe to call from
// the signal handler and the observation loop; the first caller wins.
func (t *Tracker) closeInterval(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime.IsZero() {
		return
	}
	if err := t.logs.SaveEnd(t.processName, t.startTime, now); err != nil {
		log.Warnf("tracker %s: closing interval: %v", t.id, err)
	}
	t.startTime = time.Time{}
}

func (t *Tracker) requestStop() {
	t.cancel.Store(true)
	t.stopOnce.Do(func() { close(t.stopCh) })
}

// sleep waits for d or for cancellation, whichever comes first.
func (t *Tracker) sleep(d time.Duration) {
	timer := t.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-t.stopCh:
	}
}

func mintID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-derived id; uniqueness is enforced server-side.
		return hex.EncodeToString([]byte(time.Now().Format("150405.000")))[:12]
	}
	return hex.EncodeToString(buf)
}

func admissionError(token string) error {
	switch token {
	case wire.TokenLimit:
		return errors.New("tracking limit reached")
	case wire.TokenDuplicateID:
		return errors.New("tracking id already in use")
	case wire.TokenDuplicateProcess:
		return errors.New("process is already tracked")
	default:
		return errors.Errorf("server refused tracking: %s", token)
	}
}
