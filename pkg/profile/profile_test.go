// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "profile"), filepath.Join(dir, "logs"))
}

func testProfile(name string) Profile {
	return Profile{Username: name, IP: "127.0.0.1", Port: 10101, Limit: 8, Selected: false}
}

func TestCreate(t *testing.T) {
	t.Run("should persist the row and make the log directory", func(t *testing.T) {
		s := newTestStore(t)

		ok, err := s.Create(testProfile("alice"))
		require.NoError(t, err)
		require.True(t, ok)

		all := s.All()
		require.Len(t, all, 1)
		assert.Equal(t, "alice", all[0].Username)
		assert.DirExists(t, filepath.Join(s.logsRoot, "alice"))
	})

	t.Run("should reject a trimmed-equal duplicate username", func(t *testing.T) {
		s := newTestStore(t)

		ok, err := s.Create(testProfile("alice"))
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Create(testProfile("alice"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Len(t, s.All(), 1)
	})
}

func TestRemove(t *testing.T) {
	t.Run("should drop the row and the log directory", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Create(testProfile("alice"))
		require.NoError(t, err)

		ok, err := s.Remove("alice")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Empty(t, s.All())
		assert.NoDirExists(t, filepath.Join(s.logsRoot, "alice"))
	})

	t.Run("should report an unknown username", func(t *testing.T) {
		s := newTestStore(t)

		ok, err := s.Remove("ghost")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCreateThenRemoveRestoresPreState(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(testProfile("keep"))
	require.NoError(t, err)
	before := s.All()

	_, err = s.Create(testProfile("temp"))
	require.NoError(t, err)
	_, err = s.Remove("temp")
	require.NoError(t, err)

	assert.Equal(t, before, s.All())
	assert.NoDirExists(t, filepath.Join(s.logsRoot, "temp"))
}

func TestSwitch(t *testing.T) {
	t.Run("should leave exactly one row selected", func(t *testing.T) {
		s := newTestStore(t)
		first := testProfile("alice")
		first.Selected = true
		_, err := s.Create(first)
		require.NoError(t, err)
		_, err = s.Create(testProfile("bob"))
		require.NoError(t, err)

		ok, err := s.Switch("bob")
		require.NoError(t, err)
		require.True(t, ok)

		selected := 0
		for _, p := range s.All() {
			if p.Selected {
				selected++
				assert.Equal(t, "bob", p.Username)
			}
		}
		assert.Equal(t, 1, selected)
	})

	t.Run("should report an unknown username", func(t *testing.T) {
		s := newTestStore(t)
		ok, err := s.Switch("ghost")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRename(t *testing.T) {
	t.Run("should rename the row and move the log directory", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Create(testProfile("alice"))
		require.NoError(t, err)
		marker := filepath.Join(s.logsRoot, "alice", "20240101")
		require.NoError(t, os.WriteFile(marker, []byte("foo|2024-01-01 10:00:00|None\n"), 0o644))

		ok, err := s.Rename("alice", "alicia")
		require.NoError(t, err)
		require.True(t, ok)

		all := s.All()
		require.Len(t, all, 1)
		assert.Equal(t, "alicia", all[0].Username)
		assert.FileExists(t, filepath.Join(s.logsRoot, "alicia", "20240101"))
		assert.NoDirExists(t, filepath.Join(s.logsRoot, "alice"))
	})

	t.Run("should report a missing source row", func(t *testing.T) {
		s := newTestStore(t)
		ok, err := s.Rename("ghost", "anything")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(testProfile("alice"))
	require.NoError(t, err)

	ok, err := s.Update("alice", "0.0.0.0", 8000, 4)
	require.NoError(t, err)
	require.True(t, ok)

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "0.0.0.0", all[0].IP)
	assert.Equal(t, 8000, all[0].Port)
	assert.Equal(t, 4, all[0].Limit)
}

func TestCurrent(t *testing.T) {
	t.Run("should clamp an oversized limit", func(t *testing.T) {
		s := newTestStore(t)
		p := testProfile("alice")
		p.Limit = 99
		p.Selected = true
		_, err := s.Create(p)
		require.NoError(t, err)

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, 24, cur.Limit)
	})

	t.Run("should clamp an undersized limit", func(t *testing.T) {
		s := newTestStore(t)
		p := testProfile("alice")
		p.Limit = 0
		p.Selected = true
		_, err := s.Create(p)
		require.NoError(t, err)

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, 1, cur.Limit)
	})

	t.Run("should report no selection", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Create(testProfile("alice"))
		require.NoError(t, err)

		_, ok := s.Current()
		assert.False(t, ok)
	})
}

func TestReadAllTolerance(t *testing.T) {
	t.Run("should treat a missing file as empty", func(t *testing.T) {
		s := newTestStore(t)
		assert.Empty(t, s.All())
	})

	t.Run("should skip malformed rows", func(t *testing.T) {
		s := newTestStore(t)
		content := "alice|127.0.0.1|10101|8|1\n" +
			"not a row\n" +
			"bob|127.0.0.1|notaport|8|0\n" +
			"carol|127.0.0.1|8000|8|0\n"
		require.NoError(t, os.MkdirAll(filepath.Dir(s.path), 0o755))
		require.NoError(t, os.WriteFile(s.path, []byte(content), 0o644))

		all := s.All()
		require.Len(t, all, 2)
		assert.Equal(t, "alice", all[0].Username)
		assert.Equal(t, "carol", all[1].Username)
	})
}

func TestEnsureDefault(t *testing.T) {
	t.Run("should seed a selected profile on an empty store", func(t *testing.T) {
		s := newTestStore(t)

		p, err := s.EnsureDefault()
		require.NoError(t, err)
		assert.True(t, p.Selected)
		assert.Equal(t, "127.0.0.1", p.IP)
		assert.Equal(t, 10101, p.Port)
		assert.Equal(t, 8, p.Limit)
		assert.True(t, ValidUsername(p.Username))

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, p.Username, cur.Username)
	})

	t.Run("should select the first row when none is selected", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Create(testProfile("alice"))
		require.NoError(t, err)

		p, err := s.EnsureDefault()
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Username)
		assert.Len(t, s.All(), 1)
	})

	t.Run("should leave an existing selection alone", func(t *testing.T) {
		s := newTestStore(t)
		p := testProfile("alice")
		p.Selected = true
		_, err := s.Create(p)
		require.NoError(t, err)

		got, err := s.EnsureDefault()
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Len(t, s.All(), 1)
	})
}

func TestValidUsername(t *testing.T) {
	assert.True(t, ValidUsername("alice"))
	assert.True(t, ValidUsername("a-b_c9"))
	assert.False(t, ValidUsername("ab"))
	assert.False(t, ValidUsername("seventeencharslong"))
	assert.False(t, ValidUsername("has space"))
	assert.False(t, ValidUsername("dot.name"))
}
