// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/config"
	"github.com/7ched7/trakd/pkg/profile"
)

var userCmd = &cobra.Command{
	Use:   "user [command]",
	Short: "Manage tracking profiles",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a profile with the default endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  addUser,
}

var userRmCmd = &cobra.Command{
	Use:   "rm <username>",
	Short: "Remove a profile and its logs",
	Args:  cobra.ExactArgs(1),
	RunE:  removeUser,
}

var userSwitchCmd = &cobra.Command{
	Use:   "switch <username>",
	Short: "Select the active profile",
	Args:  cobra.ExactArgs(1),
	RunE:  switchUser,
}

var userRenameCmd = &cobra.Command{
	Use:   "rename <username> <new_username>",
	Short: "Rename a profile, moving its logs",
	Args:  cobra.ExactArgs(2),
	RunE:  renameUser,
}

var userLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE:  listUsers,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRmCmd)
	userCmd.AddCommand(userSwitchCmd)
	userCmd.AddCommand(userRenameCmd)
	userCmd.AddCommand(userLsCmd)
	TrakdCmd.AddCommand(userCmd)
}

func addUser(cmd *cobra.Command, args []string) error {
	username := args[0]
	if !profile.ValidUsername(username) {
		return failf("invalid username %q: want 3-16 letters, digits, - or _", username)
	}
	if err := config.EnsureHome(); err != nil {
		return fail(err)
	}

	store := profile.DefaultStore()
	ok, err := store.Create(profile.Profile{
		Username: username,
		IP:       config.DefaultIP,
		Port:     config.DefaultPort,
		Limit:    config.DefaultLimit,
		Selected: len(store.All()) == 0,
	})
	if err != nil {
		return fail(err)
	}
	if !ok {
		return failf("profile %q already exists", username)
	}
	color.Green("profile %s created", username)
	return nil
}

func removeUser(cmd *cobra.Command, args []string) error {
	ok, err := profile.DefaultStore().Remove(args[0])
	if err != nil {
		return fail(err)
	}
	if !ok {
		return failf("no profile named %q", args[0])
	}
	color.Green("profile %s removed", args[0])
	return nil
}

func switchUser(cmd *cobra.Command, args []string) error {
	ok, err := profile.DefaultStore().Switch(args[0])
	if err != nil {
		return fail(err)
	}
	if !ok {
		return failf("no profile named %q", args[0])
	}
	color.Green("switched to profile %s", args[0])
	return nil
}

func renameUser(cmd *cobra.Command, args []string) error {
	oldName, newName := args[0], args[1]
	if !profile.ValidUsername(newName) {
		return failf("invalid username %q: want 3-16 letters, digits, - or _", newName)
	}

	// The store does not check the new name; the conflict check lives here.
	store := profile.DefaultStore()
	for _, p := range store.All() {
		if p.Username == newName {
			return failf("profile %q already exists", newName)
		}
	}

	ok, err := store.Rename(oldName, newName)
	if err != nil {
		return fail(err)
	}
	if !ok {
		return failf("no profile named %q", oldName)
	}
	color.Green("profile %s renamed to %s", oldName, newName)
	return nil
}

func listUsers(cmd *cobra.Command, args []string) error {
	profiles := profile.DefaultStore().All()

	table := newTable("USERNAME", "IP", "PORT", "LIMIT", "SELECTED")
	for _, p := range profiles {
		selected := ""
		if p.Selected {
			selected = "*"
		}
		table.Append([]string{
			p.Username, p.IP, strconv.Itoa(p.Port), strconv.Itoa(p.Limit), selected,
		})
	}
	table.Render()
	return nil
}
