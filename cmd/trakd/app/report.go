// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package app

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/7ched7/trakd/pkg/config"
	"github.com/7ched7/trakd/pkg/report"
	"github.com/7ched7/trakd/pkg/timelog"
)

var (
	reportDaily   bool
	reportWeekly  bool
	reportMonthly bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate tracked run time over a date range",
	Args:  cobra.NoArgs,
	RunE:  generateReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportDaily, "daily", false, "today only (default)")
	reportCmd.Flags().BoolVar(&reportWeekly, "weekly", false, "last 7 days")
	reportCmd.Flags().BoolVar(&reportMonthly, "monthly", false, "last 30 days")
	reportCmd.MarkFlagsMutuallyExclusive("daily", "weekly", "monthly")
	TrakdCmd.AddCommand(reportCmd)
}

func generateReport(cmd *cobra.Command, args []string) error {
	span := report.Daily
	switch {
	case reportWeekly:
		span = report.Weekly
	case reportMonthly:
		span = report.Monthly
	}

	p, err := currentProfile()
	if err != nil {
		return fail(err)
	}
	gen := report.NewGenerator(timelog.NewManager(config.UserLogsDir(p.Username)))
	entries, err := gen.Generate(span)
	if err != nil {
		return fail(err)
	}

	color.Cyan("%s report for %s", span, p.Username)
	if len(entries) == 0 {
		fmt.Println("no recorded activity")
		return nil
	}

	table := newTable("PROCESS", "TOTAL", "ACTIVE DAYS")
	for _, e := range entries {
		table.Append([]string{e.Process, formatTotal(e.Total), strconv.Itoa(e.ActiveDays)})
	}
	table.Render()
	return nil
}

// formatTotal renders a run total as H:MM:SS; hours grow without wrapping.
func formatTotal(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
