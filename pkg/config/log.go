// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import (
	"fmt"
	"strings"

	log "github.com/cihub/seelog"

	utillog "github.com/7ched7/trakd/pkg/util/log"
)

const logFileMaxSize = 10 * 1024 * 1024         // 10MB
const logDateFormat = "2006-01-02 15:04:05 MST" // see time.Format for format syntax

// SetupLogger sets up the default logger. An empty logFile logs to the
// console only.
func SetupLogger(logLevel, logFile string) error {
	configTemplate := `<seelog minlevel="%s">
    <outputs formatid="common">
        <console />`
	if logFile != "" {
		configTemplate += `<rollingfile type="size" filename="%s" maxsize="%d" maxrolls="1" />`
	}
	configTemplate += `</outputs>
    <formats>
        <format id="common" format="%%Date(%s) | %%LEVEL | (%%RelFile:%%Line) | %%Msg%%n"/>
    </formats>
</seelog>`

	var config string
	if logFile != "" {
		config = fmt.Sprintf(configTemplate, strings.ToLower(logLevel), logFile, logFileMaxSize, logDateFormat)
	} else {
		config = fmt.Sprintf(configTemplate, strings.ToLower(logLevel), logDateFormat)
	}

	logger, err := log.LoggerFromConfigAsString(config)
	if err != nil {
		return err
	}
	// One wrapper frame between call sites and seelog.
	if err := logger.SetAdditionalStackDepth(1); err != nil {
		return err
	}
	log.ReplaceLogger(logger)
	utillog.SetupLogger(logger)
	return nil
}
