// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package wire implements the framed socket transport shared by the broker,
// the trackers and the CLI. A logical message is whatever a single write
// sends and a single read returns: no length prefix, at most MaxMessage
// bytes, payloads either a short ASCII token or one UTF-8 JSON object.
package wire

import (
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MaxMessage bounds a single encoded message. The protocol assumes no
// payload exceeds it, so writers reject instead of splitting.
const MaxMessage = 4096

// ASCII tokens exchanged on the wire.
const (
	TokenOK               = "ok"
	TokenError            = "error"
	TokenLimit            = "limit"
	TokenDuplicateID      = "duplicate id"
	TokenDuplicateProcess = "duplicate process"
	TokenDuplicate        = "duplicate"
	TokenStop             = "stop"
	TokenPing             = "ping"
)

// ErrMessageTooLarge is returned when an encoded payload exceeds MaxMessage.
var ErrMessageTooLarge = errors.New("message exceeds 4096 bytes")

// WriteToken sends an ASCII token as one write.
func WriteToken(conn net.Conn, token string) error {
	_, err := conn.Write([]byte(token))
	return err
}

// WriteJSON marshals v and sends it as one write.
func WriteJSON(conn net.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}
	return WriteBytes(conn, data)
}

// WriteBytes sends a pre-encoded payload as one write.
func WriteBytes(conn net.Conn, data []byte) error {
	if len(data) > MaxMessage {
		return ErrMessageTooLarge
	}
	_, err := conn.Write(data)
	return err
}

// Read performs a single receive of up to MaxMessage bytes. It returns
// whatever the one read returned; an empty read surfaces the underlying
// error (io.EOF on orderly close).
func Read(conn net.Conn) ([]byte, error) {
	buf := make([]byte, MaxMessage)
	n, err := conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// ReadWithin is Read bounded by a deadline, used for readiness polls.
// Use IsTimeout to tell "nothing arrived" from a dead peer.
func ReadWithin(conn net.Conn, d time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	defer conn.SetReadDeadline(time.Time{})
	return Read(conn)
}

// IsTimeout reports whether err is a deadline expiry rather than a
// transport failure.
func IsTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// Request sends v and blocks for the single response message.
func Request(conn net.Conn, v interface{}) ([]byte, error) {
	if err := WriteJSON(conn, v); err != nil {
		return nil, err
	}
	return Read(conn)
}

// Notify sends v without expecting a response.
func Notify(conn net.Conn, v interface{}) error {
	return WriteJSON(conn, v)
}

// Token canonicalizes a received payload for comparison against the token
// constants: trimmed and case-folded.
func Token(data []byte) string {
	return strings.ToLower(strings.TrimSpace(string(data)))
}
