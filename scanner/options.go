// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package scanner

import "path/filepath"

// Option configures a Scan call (spec.md §4.6, generalized from the
// teacher's own fstree.Option set).
type Option func(*options)

type options struct {
	excludePatterns []string
	excludeFn       func(path string, isDir bool) bool
	followSymlinks  bool
	maxFileSize     int64
	maxFiles        int
	cache           *Cache
}

func defaultOptions() *options {
	return &options{
		maxFileSize: 100 * 1024 * 1024,
		maxFiles:    100000,
	}
}

// WithExclude adds glob patterns for relative paths to skip.
func WithExclude(patterns ...string) Option {
	return func(o *options) { o.excludePatterns = append(o.excludePatterns, patterns...) }
}

// WithExcludeFunc sets a custom exclusion predicate, called for every
// entry found during the walk.
func WithExcludeFunc(fn func(path string, isDir bool) bool) Option {
	return func(o *options) { o.excludeFn = fn }
}

// WithFollowSymlinks dereferences symlinks instead of recording them as
// symlink entries.
func WithFollowSymlinks() Option {
	return func(o *options) { o.followSymlinks = true }
}

// WithMaxFileSize sets the largest file size that will be scanned.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithMaxFiles bounds the number of regular files a single Scan call
// will process.
func WithMaxFiles(n int) Option {
	return func(o *options) { o.maxFiles = n }
}

// WithCache attaches a persistent (size, mtime) -> digest cache so
// repeated scans across process invocations skip re-hashing unchanged
// files (spec.md §4.6, supplemented feature).
func WithCache(c *Cache) Option {
	return func(o *options) { o.cache = c }
}

func (o *options) shouldExclude(relPath string, isDir bool) bool {
	if o.excludeFn != nil && o.excludeFn(relPath, isDir) {
		return true
	}
	for _, pattern := range o.excludePatterns {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(relPath)); matched {
			return true
		}
		if isDir && len(pattern) > 3 && pattern[len(pattern)-3:] == "/**" {
			if matched, _ := filepath.Match(pattern[:len(pattern)-3], relPath); matched {
				return true
			}
		}
	}
	return false
}
