// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package broker implements the tracked-process broker: a loopback TCP
// service owning the live registry, and the client the CLI and trackers use
// to talk to it. One goroutine serves each accepted session; the registry
// is serialized behind a single mutex; shutdown is broadcast by pushing the
// stop token on every tracker session.
package broker

import (
	"encoding/json"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/7ched7/trakd/pkg/util/log"
	"github.com/7ched7/trakd/pkg/wire"
)

// acceptPoll bounds how long the accept loop and session readers block
// before rechecking the shutdown flag.
const acceptPoll = time.Second

// ErrAlreadyRunning reports a bind failure caused by another listener on
// the configured endpoint.
var ErrAlreadyRunning = errors.New("server is already running")

// ErrBadEndpoint reports a bind failure caused by the configured address
// itself: a port needing privileges or an address this host cannot bind.
var ErrBadEndpoint = errors.New("configuration or permission error")

// Server owns the registry and the listening socket.
type Server struct {
	ip    string
	port  int
	limit int

	readyCh chan struct{}

	mu       sync.Mutex
	reg      *registry
	listener net.Listener
	bound    *net.TCPAddr

	shutdown *atomic.Bool
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithReadyChannel arranges for ch to be closed once the server listens.
func WithReadyChannel(ch chan struct{}) Option {
	return func(s *Server) {
		s.readyCh = ch
	}
}

// NewServer returns an unstarted server for the given endpoint and
// tracked-process limit. Port 0 picks an ephemeral port, exposed by Addr.
func NewServer(ip string, port, limit int, opts ...Option) *Server {
	s := &Server{
		ip:       ip,
		port:     port,
		limit:    limit,
		reg:      newRegistry(limit),
		shutdown: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the bound address, or nil before Run has bound.
func (s *Server) Addr() *net.TCPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Run binds the endpoint and serves until Shutdown. The listening socket is
// closed after every session worker has exited.
func (s *Server) Run() error {
	listener, err := net.Listen("tcp", net.JoinHostPort(s.ip, strconv.Itoa(s.port)))
	if err != nil {
		return classifyBindError(err)
	}
	tcpListener := listener.(*net.TCPListener)

	s.mu.Lock()
	s.listener = listener
	s.bound = listener.Addr().(*net.TCPAddr)
	s.mu.Unlock()

	log.Infof("server listening on %s, tracking limit %d", listener.Addr(), s.limit)
	if s.readyCh != nil {
		close(s.readyCh)
	}

	for !s.shutdown.Load() {
		if err := tcpListener.SetDeadline(time.Now().Add(acceptPoll)); err != nil {
			return errors.Wrap(err, "arming accept deadline")
		}
		conn, err := tcpListener.Accept()
		if err != nil {
			if wire.IsTimeout(err) {
				continue
			}
			if s.shutdown.Load() {
				break
			}
			log.Warnf("accept failed: %v", err)
			continue
		}
		s.wg.Add(1)
		go s.serve(conn)
	}

	s.wg.Wait()
	err = listener.Close()
	log.Info("server stopped")
	return err
}

// Shutdown performs the graceful stop: snapshot and clear the registry,
// push the stop token to every tracker best-effort, then raise the flag so
// the accept loop and the session workers wind down. Safe to call from any
// goroutine, including session workers, and idempotent.
func (s *Server) Shutdown() {
	s.mu.Lock()
	entries := s.reg.clear()
	s.mu.Unlock()

	var errs *multierror.Error
	for _, e := range entries {
		if e.rec.conn == nil {
			continue
		}
		if err := wire.WriteToken(e.rec.conn, wire.TokenStop); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "tracker %s", e.id))
		}
	}
	if errs != nil {
		log.Debugf("stop broadcast: %v", errs)
	}

	s.shutdown.Store(true)
}

// serve reads framed messages from one session until the peer leaves or the
// server shuts down.
func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	log.Debugf("session opened by %s", conn.RemoteAddr())

	for !s.shutdown.Load() {
		data, err := wire.ReadWithin(conn, acceptPoll)
		if err != nil {
			if wire.IsTimeout(err) {
				continue
			}
			if err != io.EOF {
				log.Debugf("session %s read: %v", conn.RemoteAddr(), err)
			}
			return
		}
		s.dispatch(conn, data)
	}
}

// dispatch decodes one message and routes it by command. Payloads that are
// not JSON objects, tracker pings included, are dropped; so are unknown
// commands.
func (s *Server) dispatch(conn net.Conn, data []byte) {
	var req map[string]json.RawMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	var cmd string
	if raw, ok := req["command"]; ok {
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return
		}
	}

	switch cmd {
	case CmdAdd:
		s.handleAdd(conn, req)
	case CmdUpdate:
		s.handleUpdate(req)
	case CmdRemove:
		s.handleRemove(conn, req)
	case CmdRename:
		s.handleRename(conn, req)
	case CmdPs:
		s.handlePs(conn, req)
	case CmdStatus:
		s.handleStatus(conn)
	case CmdStop:
		s.Shutdown()
	default:
	}
}

func (s *Server) handleAdd(conn net.Conn, req map[string]json.RawMessage) {
	var id string
	var payload RecordPayload
	found := false
	for key, raw := range req {
		if key == "command" {
			continue
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		id = key
		found = true
		break
	}
	if !found {
		s.respond(conn, wire.TokenError)
		return
	}

	status := Status(payload.Status)
	if status != StatusStopped {
		status = StatusRunning
	}
	rec := &record{
		processName: payload.ProcessName,
		pid:         payload.Pid,
		trackerPid:  payload.TrackPid,
		startTime:   payload.StartTime,
		status:      status,
		conn:        conn,
	}

	s.mu.Lock()
	token := s.reg.add(id, rec)
	s.mu.Unlock()

	if token == wire.TokenOK {
		log.Infof("tracking %s as %s", rec.processName, id)
	} else {
		log.Debugf("add %s rejected: %s", id, token)
	}
	s.respond(conn, token)
}

func (s *Server) handleUpdate(req map[string]json.RawMessage) {
	var status Status
	if raw, ok := req["status"]; ok {
		if err := json.Unmarshal(raw, &status); err != nil {
			return
		}
	}
	for key, raw := range req {
		if key == "command" || key == "status" {
			continue
		}
		var pid *int32
		if err := json.Unmarshal(raw, &pid); err != nil {
			continue
		}
		s.mu.Lock()
		s.reg.updateByProcess(key, status, pid)
		s.mu.Unlock()
		log.Debugf("update: %s is %s", key, status)
		return
	}
}

func (s *Server) handleRemove(conn net.Conn, req map[string]json.RawMessage) {
	var id string
	if raw, ok := req["process"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			s.respond(conn, wire.TokenError)
			return
		}
	}

	s.mu.Lock()
	rec, ok := s.reg.remove(id)
	s.mu.Unlock()
	if !ok {
		s.respond(conn, wire.TokenError)
		return
	}

	// The entry is already gone from the registry, so the tracker's exit
	// races nothing.
	if rec.conn != nil {
		if err := wire.WriteToken(rec.conn, wire.TokenStop); err != nil {
			log.Debugf("stop to tracker %s: %v", id, err)
		}
	}
	log.Infof("stopped tracking %s", id)
	s.respond(conn, wire.TokenOK)
}

func (s *Server) handleRename(conn net.Conn, req map[string]json.RawMessage) {
	var id, newID string
	if raw, ok := req["process"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			s.respond(conn, wire.TokenError)
			return
		}
	}
	if raw, ok := req["new_id"]; ok {
		if err := json.Unmarshal(raw, &newID); err != nil {
			s.respond(conn, wire.TokenError)
			return
		}
	}

	s.mu.Lock()
	token := s.reg.rename(id, newID)
	s.mu.Unlock()

	if token == wire.TokenOK {
		log.Infof("renamed %s to %s", id, newID)
	}
	s.respond(conn, token)
}

func (s *Server) handlePs(conn net.Conn, req map[string]json.RawMessage) {
	var all, detailed bool
	if raw, ok := req["all"]; ok {
		_ = json.Unmarshal(raw, &all)
	}
	if raw, ok := req["detailed"]; ok {
		_ = json.Unmarshal(raw, &detailed)
	}

	s.mu.Lock()
	entries := s.reg.snapshot()
	s.mu.Unlock()

	projected := make([]PsProcess, 0, len(entries))
	for _, e := range entries {
		if !all && e.rec.status == StatusStopped {
			continue
		}
		p := PsProcess{
			ID:          e.id,
			ProcessName: e.rec.processName,
			StartTime:   e.rec.startTime,
			Status:      e.rec.status,
			Detailed:    detailed,
		}
		if detailed {
			p.Pid = e.rec.pid
			p.Conn = describeConn(e.rec.conn)
		}
		projected = append(projected, p)
	}

	data, err := marshalPsResult(projected)
	if err != nil {
		log.Debugf("ps encoding: %v", err)
		s.respond(conn, wire.TokenError)
		return
	}
	if err := wire.WriteBytes(conn, data); err != nil {
		log.Debugf("ps response: %v", err)
	}
}

func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	running, stopped := s.reg.counts()
	tracked := s.reg.len()
	s.mu.Unlock()

	port := s.port
	if addr := s.Addr(); addr != nil {
		port = addr.Port
	}
	result := StatusResult{
		IP:      s.ip,
		Port:    port,
		Tracked: tracked,
		Running: running,
		Stopped: stopped,
	}
	if err := wire.WriteJSON(conn, result); err != nil {
		log.Debugf("status response: %v", err)
	}
}

func (s *Server) respond(conn net.Conn, token string) {
	if err := wire.WriteToken(conn, token); err != nil {
		log.Debugf("response %q to %s: %v", token, conn.RemoteAddr(), err)
	}
}

// describeConn renders a tracker session as "host/port", or "Disconnected"
// when the session is unusable.
func describeConn(conn net.Conn) string {
	if conn == nil {
		return "Disconnected"
	}
	addr := conn.RemoteAddr()
	if addr == nil {
		return "Disconnected"
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "Disconnected"
	}
	return host + "/" + port
}

// classifyBindError maps a listen failure to its user-facing kind: an
// occupied endpoint means another broker is up, a permission or
// unassignable-address failure means the profile is wrong.
func classifyBindError(err error) error {
	switch {
	case isAddrInUse(err):
		return ErrAlreadyRunning
	case isAddrDenied(err):
		return errors.Wrap(ErrBadEndpoint, err.Error())
	default:
		return errors.Wrap(err, "binding server socket")
	}
}
