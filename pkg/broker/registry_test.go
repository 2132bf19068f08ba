// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package broker

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(processName string) *record {
	pid := int32(1234)
	return &record{
		processName: processName,
		pid:         &pid,
		trackerPid:  5678,
		startTime:   "2024-01-01 10:00:00",
		status:      StatusRunning,
	}
}

func TestRegistryAdd(t *testing.T) {
	t.Run("should admit under the limit", func(t *testing.T) {
		r := newRegistry(2)
		assert.Equal(t, "ok", r.add("aaa", newRecord("foo")))
		assert.Equal(t, 1, r.len())
	})

	t.Run("should reject with limit when full", func(t *testing.T) {
		r := newRegistry(1)
		require.Equal(t, "ok", r.add("aaa", newRecord("foo")))
		assert.Equal(t, "limit", r.add("bbb", newRecord("bar")))
		assert.Equal(t, 1, r.len())
	})

	t.Run("should reject a case-insensitive duplicate id", func(t *testing.T) {
		r := newRegistry(8)
		require.Equal(t, "ok", r.add("AbC", newRecord("Foo")))
		assert.Equal(t, "duplicate id", r.add("abc", newRecord("Baz")))
	})

	t.Run("should reject a case-insensitive duplicate process", func(t *testing.T) {
		r := newRegistry(8)
		require.Equal(t, "ok", r.add("AbC", newRecord("Foo")))
		assert.Equal(t, "duplicate process", r.add("xyz", newRecord("foo")))
	})

	t.Run("should check the limit before uniqueness", func(t *testing.T) {
		r := newRegistry(1)
		require.Equal(t, "ok", r.add("aaa", newRecord("foo")))
		assert.Equal(t, "limit", r.add("aaa", newRecord("foo")))
	})
}

func TestRegistryUpdateByProcess(t *testing.T) {
	r := newRegistry(8)
	require.Equal(t, "ok", r.add("aaa", newRecord("foo")))

	t.Run("should set status and pid on an exact name match", func(t *testing.T) {
		newPid := int32(4321)
		r.updateByProcess("foo", StatusRunning, &newPid)
		require.NotNil(t, r.recs["aaa"].pid)
		assert.Equal(t, int32(4321), *r.recs["aaa"].pid)
	})

	t.Run("should clear the pid on a stopped transition", func(t *testing.T) {
		r.updateByProcess("foo", StatusStopped, nil)
		assert.Equal(t, StatusStopped, r.recs["aaa"].status)
		assert.Nil(t, r.recs["aaa"].pid)
	})

	t.Run("should not match a different case", func(t *testing.T) {
		runningPid := int32(1)
		r.updateByProcess("FOO", StatusRunning, &runningPid)
		assert.Equal(t, StatusStopped, r.recs["aaa"].status)
	})

	t.Run("should ignore an unknown name", func(t *testing.T) {
		r.updateByProcess("ghost", StatusRunning, nil)
		assert.Equal(t, 1, r.len())
	})
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry(8)
	require.Equal(t, "ok", r.add("aaa", newRecord("foo")))
	require.Equal(t, "ok", r.add("bbb", newRecord("bar")))

	rec, ok := r.remove("aaa")
	require.True(t, ok)
	assert.Equal(t, "foo", rec.processName)
	assert.Equal(t, []string{"bbb"}, r.ids)

	_, ok = r.remove("aaa")
	assert.False(t, ok)
}

func TestRegistryRename(t *testing.T) {
	t.Run("should follow the rm-then-retry sequence", func(t *testing.T) {
		r := newRegistry(8)
		require.Equal(t, "ok", r.add("aaa", newRecord("foo")))

		assert.Equal(t, "ok", r.rename("aaa", "bbb"))
		assert.Equal(t, "error", r.rename("aaa", "bbb"), "source id is gone after the first rename")

		require.Equal(t, "ok", r.add("ccc", newRecord("bar")))
		assert.Equal(t, "duplicate", r.rename("ccc", "bbb"))
	})

	t.Run("should check the new id case-sensitively", func(t *testing.T) {
		r := newRegistry(8)
		require.Equal(t, "ok", r.add("foo", newRecord("a")))
		require.Equal(t, "ok", r.add("bar", newRecord("b")))

		// Unlike add's admission, an exact-case-different id is allowed.
		assert.Equal(t, "ok", r.rename("bar", "FOO"))
	})

	t.Run("should preserve position and conn", func(t *testing.T) {
		r := newRegistry(8)
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		recA := newRecord("foo")
		recA.conn = server
		require.Equal(t, "ok", r.add("aaa", recA))
		require.Equal(t, "ok", r.add("bbb", newRecord("bar")))

		require.Equal(t, "ok", r.rename("aaa", "zzz"))

		assert.Equal(t, []string{"zzz", "bbb"}, r.ids)
		require.Contains(t, r.recs, "zzz")
		assert.Same(t, server, r.recs["zzz"].conn)
		assert.NotContains(t, r.recs, "aaa")
	})
}

func TestRegistrySnapshotAndClear(t *testing.T) {
	r := newRegistry(8)
	require.Equal(t, "ok", r.add("aaa", newRecord("foo")))
	require.Equal(t, "ok", r.add("bbb", newRecord("bar")))

	snap := r.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "aaa", snap[0].id)
	assert.Equal(t, "bbb", snap[1].id)

	cleared := r.clear()
	assert.Len(t, cleared, 2)
	assert.Equal(t, 0, r.len())
	assert.Empty(t, r.recs)
}

func TestRegistryCounts(t *testing.T) {
	r := newRegistry(8)
	require.Equal(t, "ok", r.add("aaa", newRecord("foo")))
	require.Equal(t, "ok", r.add("bbb", newRecord("bar")))
	r.updateByProcess("bar", StatusStopped, nil)

	running, stopped := r.counts()
	assert.Equal(t, 1, running)
	assert.Equal(t, 1, stopped)
}
