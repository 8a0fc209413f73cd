// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/nrdvana/casfs/errs"
)

// Log appends lines to casbak.log through a logrus.Logger configured
// with a plain-text formatter, the same logging library the store and
// CLI packages use (spec.md §6).
type Log struct {
	*log.Logger
	file *os.File
}

const logFileName = "casbak.log"

// OpenLog opens (creating if needed) casbak.log for appending.
func OpenLog(dir string) (*Log, error) {
	path := dir + string(os.PathSeparator) + logFileName
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errs.ErrIO, logFileName, err)
	}
	logger := log.New()
	logger.SetOutput(f)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	return &Log{Logger: logger, file: f}, nil
}

// Close closes the underlying log file.
func (l *Log) Close() error {
	return l.file.Close()
}
