// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package profile persists the named endpoint configurations and the
// selection bit. The store is a single `|`-delimited text file rewritten
// whole under a directory lock, so concurrent CLI invocations and the broker
// see consistent rows.
package profile

import (
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/7ched7/trakd/pkg/config"
	"github.com/7ched7/trakd/pkg/util/log"
)

// Profile is one row of the store.
type Profile struct {
	Username string
	IP       string
	Port     int
	Limit    int
	Selected bool
}

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,16}$`)

// ValidUsername reports whether s is a legal profile name.
func ValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// Store reads and mutates the profile file. All writers rewrite the whole
// file under the directory lock.
type Store struct {
	path     string
	logsRoot string
	lock     *flock.Flock
}

// NewStore returns a store over the given profile file; per-user log
// directories are managed under logsRoot.
func NewStore(path, logsRoot string) *Store {
	return &Store{
		path:     path,
		logsRoot: logsRoot,
		lock:     flock.New(filepath.Join(filepath.Dir(path), "lck.lock")),
	}
}

// DefaultStore returns the store at the standard location.
func DefaultStore() *Store {
	return NewStore(config.ProfilePath(), config.LogsDir())
}

// All returns the profiles in file order. A missing or unreadable file is
// an empty list.
func (s *Store) All() []Profile {
	if err := s.lock.Lock(); err != nil {
		return nil
	}
	defer s.lock.Unlock()
	return s.readAll()
}

// Current returns the selected profile with its limit clamped to the legal
// range, or found=false when no row is selected.
func (s *Store) Current() (Profile, bool) {
	for _, p := range s.All() {
		if !p.Selected {
			continue
		}
		if p.Limit < config.MinLimit {
			log.Debugf("profile %s: limit %d below minimum, clamping to %d", p.Username, p.Limit, config.MinLimit)
			p.Limit = config.MinLimit
		} else if p.Limit > config.MaxLimit {
			log.Debugf("profile %s: limit %d above maximum, clamping to %d", p.Username, p.Limit, config.MaxLimit)
			p.Limit = config.MaxLimit
		}
		return p, true
	}
	return Profile{}, false
}

// Create appends a profile and makes its log directory. It returns false
// when a profile with the same trimmed username already exists.
func (s *Store) Create(p Profile) (bool, error) {
	return s.modify(func(profiles []Profile) ([]Profile, bool) {
		for _, existing := range profiles {
			if sameUsername(existing.Username, p.Username) {
				return nil, false
			}
		}
		return append(profiles, p), true
	}, func() error {
		return os.MkdirAll(filepath.Join(s.logsRoot, p.Username), 0o755)
	})
}

// Remove deletes the named profile and its log directory. It returns false
// when the username is unknown.
func (s *Store) Remove(username string) (bool, error) {
	return s.modify(func(profiles []Profile) ([]Profile, bool) {
		kept := profiles[:0]
		found := false
		for _, p := range profiles {
			if sameUsername(p.Username, username) {
				found = true
				continue
			}
			kept = append(kept, p)
		}
		return kept, found
	}, func() error {
		return os.RemoveAll(filepath.Join(s.logsRoot, username))
	})
}

// Switch marks the named profile selected and deselects every other row.
func (s *Store) Switch(username string) (bool, error) {
	return s.modify(func(profiles []Profile) ([]Profile, bool) {
		found := false
		for i := range profiles {
			if sameUsername(profiles[i].Username, username) {
				profiles[i].Selected = true
				found = true
			} else {
				profiles[i].Selected = false
			}
		}
		return profiles, found
	}, nil)
}

// Rename rekeys a profile and moves its log directory. The new name is not
// checked for conflicts; callers validate first.
func (s *Store) Rename(oldName, newName string) (bool, error) {
	return s.modify(func(profiles []Profile) ([]Profile, bool) {
		for i := range profiles {
			if sameUsername(profiles[i].Username, oldName) {
				profiles[i].Username = newName
				return profiles, true
			}
		}
		return nil, false
	}, func() error {
		oldDir := filepath.Join(s.logsRoot, oldName)
		newDir := filepath.Join(s.logsRoot, newName)
		if err := os.MkdirAll(s.logsRoot, 0o755); err != nil {
			return err
		}
		if _, err := os.Stat(oldDir); os.IsNotExist(err) {
			return os.MkdirAll(newDir, 0o755)
		}
		return os.Rename(oldDir, newDir)
	})
}

// Update overwrites the endpoint fields of the named profile.
func (s *Store) Update(username, ip string, port, limit int) (bool, error) {
	return s.modify(func(profiles []Profile) ([]Profile, bool) {
		for i := range profiles {
			if sameUsername(profiles[i].Username, username) {
				profiles[i].IP = ip
				profiles[i].Port = port
				profiles[i].Limit = limit
				return profiles, true
			}
		}
		return nil, false
	}, nil)
}

// EnsureDefault seeds the store with a selected default profile when it
// holds no rows, and returns the selected profile either way.
func (s *Store) EnsureDefault() (Profile, error) {
	if p, ok := s.Current(); ok {
		return p, nil
	}
	p := Profile{
		Username: defaultUsername(),
		IP:       config.DefaultIP,
		Port:     config.DefaultPort,
		Limit:    config.DefaultLimit,
		Selected: true,
	}
	if len(s.All()) > 0 {
		// Rows exist but none selected: select the first instead of seeding.
		first := s.All()[0].Username
		if _, err := s.Switch(first); err != nil {
			return Profile{}, err
		}
		cur, _ := s.Current()
		return cur, nil
	}
	if _, err := s.Create(p); err != nil {
		return Profile{}, errors.Wrap(err, "seeding default profile")
	}
	return p, nil
}

func defaultUsername() string {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	// Domain-qualified Windows accounts keep only the account part.
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	name = sanitizeUsername(name)
	if !ValidUsername(name) {
		return "default"
	}
	return name
}

func sanitizeUsername(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) > 16 {
		s = s[:16]
	}
	return s
}

func sameUsername(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// modify runs fn over the current rows under the lock and rewrites the file
// when fn reports success; post runs afterwards, still under the lock.
func (s *Store) modify(fn func([]Profile) ([]Profile, bool), post func() error) (bool, error) {
	if err := s.lock.Lock(); err != nil {
		return false, errors.Wrap(err, "locking profile directory")
	}
	defer s.lock.Unlock()

	out, ok := fn(s.readAll())
	if !ok {
		return false, nil
	}
	if err := s.writeAll(out); err != nil {
		return false, err
	}
	if post != nil {
		if err := post(); err != nil {
			return false, errors.Wrap(err, "updating user log directory")
		}
	}
	return true, nil
}

func (s *Store) readAll() []Profile {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var profiles []Profile
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) != 5 {
			continue
		}
		port, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			continue
		}
		limit, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil {
			continue
		}
		profiles = append(profiles, Profile{
			Username: strings.TrimSpace(fields[0]),
			IP:       strings.TrimSpace(fields[1]),
			Port:     port,
			Limit:    limit,
			Selected: strings.TrimSpace(fields[4]) == "1",
		})
	}
	return profiles
}

func (s *Store) writeAll(profiles []Profile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "creating profile directory")
	}
	var b strings.Builder
	for _, p := range profiles {
		selected := "0"
		if p.Selected {
			selected = "1"
		}
		b.WriteString(strings.Join([]string{
			p.Username, p.IP, strconv.Itoa(p.Port), strconv.Itoa(p.Limit), selected,
		}, "|"))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, "writing profile file")
	}
	return nil
}
