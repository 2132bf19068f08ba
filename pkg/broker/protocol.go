// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package broker

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"
)

// Request command names. Unknown commands are ignored by the server.
const (
	CmdAdd    = "add"
	CmdUpdate = "update"
	CmdRemove = "rm"
	CmdRename = "rename"
	CmdPs     = "ps"
	CmdStatus = "status"
	CmdStop   = "stop"
)

var trackingIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,24}$`)

// ValidTrackingID reports whether s is a legal tracking id.
func ValidTrackingID(s string) bool {
	return trackingIDRe.MatchString(s)
}

// RecordPayload is the wire form of a tracked-process record. In an add
// request it travels keyed by its tracking id; conn is always null on the
// wire, the broker substitutes the live session.
type RecordPayload struct {
	ProcessName string  `json:"process_name"`
	Pid         *int32  `json:"pid"`
	TrackPid    int32   `json:"track_pid"`
	StartTime   string  `json:"start_time"`
	Status      string  `json:"status"`
	Conn        *string `json:"conn"`
}

// StatusResult is the response to a status request.
type StatusResult struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	Tracked int    `json:"tracked_processes"`
	Running int    `json:"running"`
	Stopped int    `json:"stopped"`
}

// PsProcess is one projected registry entry as returned by ps. Pid and Conn
// are only populated in detailed mode; Conn is "host/port" of the tracker's
// session or "Disconnected".
type PsProcess struct {
	ID          string
	ProcessName string `json:"process_name"`
	Pid         *int32 `json:"pid"`
	StartTime   string `json:"start_time"`
	Status      Status `json:"status"`
	Conn        string `json:"conn"`
	Detailed    bool   `json:"-"`
}

// psBrief and psDetailed fix the serialized field sets of the two
// projection modes; track_pid never appears in either.
type psBrief struct {
	ProcessName string `json:"process_name"`
	StartTime   string `json:"start_time"`
	Status      Status `json:"status"`
}

type psDetailed struct {
	ProcessName string `json:"process_name"`
	Pid         *int32 `json:"pid"`
	StartTime   string `json:"start_time"`
	Status      Status `json:"status"`
	Conn        string `json:"conn"`
}

// marshalPsResult serializes projected entries as one JSON object whose
// keys keep registry insertion order.
func marshalPsResult(entries []PsProcess) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val []byte
		if e.Detailed {
			val, err = json.Marshal(psDetailed{
				ProcessName: e.ProcessName,
				Pid:         e.Pid,
				StartTime:   e.StartTime,
				Status:      e.Status,
				Conn:        e.Conn,
			})
		} else {
			val, err = json.Marshal(psBrief{
				ProcessName: e.ProcessName,
				StartTime:   e.StartTime,
				Status:      e.Status,
			})
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// unmarshalPsResult walks the response object token by token so the wire
// order, which is the registry order, survives decoding.
func unmarshalPsResult(data []byte) ([]PsProcess, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "decoding ps response")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("ps response is not a JSON object")
	}

	var entries []PsProcess
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "decoding ps response key")
		}
		id, ok := keyTok.(string)
		if !ok {
			return nil, errors.New("ps response key is not a string")
		}
		var entry PsProcess
		if err := dec.Decode(&entry); err != nil {
			return nil, errors.Wrap(err, "decoding ps response entry")
		}
		entry.ID = id
		entries = append(entries, entry)
	}
	return entries, nil
}
