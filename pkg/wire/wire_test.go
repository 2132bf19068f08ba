// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package wire

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_ = WriteToken(client, TokenStop)
	}()

	data, err := Read(server)
	require.NoError(t, err)
	assert.Equal(t, TokenStop, Token(data))
}

func TestJSONRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sent := map[string]interface{}{"command": "ps", "all": true, "detailed": false}
	go func() {
		_ = WriteJSON(client, sent)
	}()

	data, err := Read(server)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ps", got["command"])
	assert.Equal(t, true, got["all"])
	assert.Equal(t, false, got["detailed"])
}

func TestWriteBytesRejectsOversizedPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	err := WriteBytes(client, bytes.Repeat([]byte("x"), MaxMessage+1))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestReadWithin(t *testing.T) {
	t.Run("should report a quiet peer as a timeout", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		_, err := ReadWithin(server, 20*time.Millisecond)
		require.Error(t, err)
		assert.True(t, IsTimeout(err))
	})

	t.Run("should deliver a message that arrives inside the window", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		go func() {
			_ = WriteToken(client, TokenPing)
		}()

		data, err := ReadWithin(server, time.Second)
		require.NoError(t, err)
		assert.Equal(t, TokenPing, Token(data))
	})

	t.Run("should not report a closed peer as a timeout", func(t *testing.T) {
		client, server := net.Pipe()
		defer server.Close()

		client.Close()
		_, err := ReadWithin(server, time.Second)
		require.Error(t, err)
		assert.False(t, IsTimeout(err))
	})
}

func TestRequestReceivesSingleResponse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		data, err := Read(server)
		if err != nil {
			return
		}
		var req map[string]interface{}
		if json.Unmarshal(data, &req) == nil && req["command"] == "rm" {
			_ = WriteToken(server, TokenOK)
		}
	}()

	resp, err := Request(client, map[string]interface{}{"command": "rm", "process": "aaa"})
	require.NoError(t, err)
	assert.Equal(t, TokenOK, Token(resp))
}

func TestTokenCanonicalization(t *testing.T) {
	assert.Equal(t, "duplicate id", Token([]byte("Duplicate ID\n")))
	assert.Equal(t, "ok", Token([]byte(" OK ")))
	assert.Equal(t, "stop", Token([]byte("stop")))
}
