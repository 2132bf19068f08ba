// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package broker

import (
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/7ched7/trakd/pkg/wire"
)

// dialTimeout bounds connection establishment for one-shot CLI commands and
// tracker startup.
const dialTimeout = 3 * time.Second

// Client is one session to the broker. The CLI opens one per command; a
// tracker keeps one for its whole life and is its sole closer.
type Client struct {
	conn net.Conn
}

// Dial opens a session to the broker at ip:port.
func Dial(ip string, port int) (*Client, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to server")
	}
	return &Client{conn: conn}, nil
}

// Probe reports whether something accepts connections at ip:port.
func Probe(ip string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Conn exposes the underlying session for readiness polls.
func (c *Client) Conn() net.Conn {
	return c.conn
}

// Close closes the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Add registers a record under id and returns the broker's token: ok,
// limit, duplicate id or duplicate process.
func (c *Client) Add(id string, payload RecordPayload) (string, error) {
	req := map[string]interface{}{
		"command": CmdAdd,
		id:        payload,
	}
	resp, err := wire.Request(c.conn, req)
	if err != nil {
		return "", errors.Wrap(err, "add request")
	}
	return wire.Token(resp), nil
}

// Update pushes a status/pid transition for a process name, without
// expecting a response.
func (c *Client) Update(processName string, status Status, pid *int32) error {
	req := map[string]interface{}{
		"command":   CmdUpdate,
		"status":    status,
		processName: pid,
	}
	return wire.Notify(c.conn, req)
}

// Remove asks the broker to drop a tracking id. Token: ok or error.
func (c *Client) Remove(id string) (string, error) {
	resp, err := wire.Request(c.conn, map[string]interface{}{
		"command": CmdRemove,
		"process": id,
	})
	if err != nil {
		return "", errors.Wrap(err, "rm request")
	}
	return wire.Token(resp), nil
}

// Rename rekeys a tracking id. Token: ok, error or duplicate.
func (c *Client) Rename(id, newID string) (string, error) {
	resp, err := wire.Request(c.conn, map[string]interface{}{
		"command": CmdRename,
		"process": id,
		"new_id":  newID,
	})
	if err != nil {
		return "", errors.Wrap(err, "rename request")
	}
	return wire.Token(resp), nil
}

// Ps fetches the registry snapshot, in registry order.
func (c *Client) Ps(all, detailed bool) ([]PsProcess, error) {
	resp, err := wire.Request(c.conn, map[string]interface{}{
		"command":  CmdPs,
		"all":      all,
		"detailed": detailed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "ps request")
	}
	return unmarshalPsResult(resp)
}

// Status fetches the server summary.
func (c *Client) Status() (StatusResult, error) {
	var result StatusResult
	resp, err := wire.Request(c.conn, map[string]interface{}{
		"command": CmdStatus,
	})
	if err != nil {
		return result, errors.Wrap(err, "status request")
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return result, errors.Wrap(err, "decoding status response")
	}
	return result, nil
}

// Stop triggers the graceful shutdown. The broker sends no response.
func (c *Client) Stop() error {
	return wire.Notify(c.conn, map[string]interface{}{
		"command": CmdStop,
	})
}

// Ping tells the broker this session is alive; no response expected.
func (c *Client) Ping() error {
	return wire.WriteToken(c.conn, wire.TokenPing)
}
