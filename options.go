// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package evcompat

import "github.com/joeycumines/logiface"

// baseOptions holds configuration applied by Initialize.
type baseOptions struct {
	logger    *logiface.Logger[logiface.Event]
	issues    IssueTable
	header    HeaderInfo
	headerSet bool
}

// Option configures [Initialize].
type Option interface {
	applyBase(*baseOptions)
}

// baseOptionImpl implements Option.
type baseOptionImpl struct {
	applyBaseFunc func(*baseOptions)
}

func (o *baseOptionImpl) applyBase(opts *baseOptions) {
	o.applyBaseFunc(opts)
}

// WithLogger sets the logger used for all package diagnostics, including
// messages re-emitted by the log bridge. A nil logger, the default, silences
// the package.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &baseOptionImpl{func(opts *baseOptions) {
		opts.logger = logger
	}}
}

// WithIssueTable replaces the known-issue table consulted by
// [Base.CheckKnownIssues]. The default is [DefaultIssueTable].
func WithIssueTable(t IssueTable) Option {
	return &baseOptionImpl{func(opts *baseOptions) {
		opts.issues = t
	}}
}

// WithHeaderInfo overrides the compiled-against interface description used
// by [Base.CheckHeaderCompatibility], taking precedence over whatever the
// driver reports about itself.
func WithHeaderInfo(h HeaderInfo) Option {
	return &baseOptionImpl{func(opts *baseOptions) {
		opts.header = h
		opts.headerSet = true
	}}
}

func defaultBaseOptions() baseOptions {
	return baseOptions{issues: DefaultIssueTable()}
}
