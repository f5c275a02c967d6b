package evcompat

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type (
	// IssueTable lists driver releases known not to work. The zero value
	// has no rules; [DefaultIssueTable] carries the historical defect list.
	// Thresholds are exclusive: a release is affected when it is strictly
	// below the threshold, and zero-valued thresholds never match.
	IssueTable struct {
		// Backends holds per-backend rules; the first entry matching the
		// backend name wins.
		Backends []BackendIssues `yaml:"backends"`
		// ThreadUnsafeBefore flags releases that crash under server load
		// on platforms with user-space threading, whatever the backend.
		ThreadUnsafeBefore VersionCode `yaml:"thread_unsafe_before,omitempty"`
	}

	// BackendIssues is the known-issue thresholds for one polling backend.
	BackendIssues struct {
		Backend string `yaml:"backend"`
		// SeriousBefore: releases below this have serious bugs with the
		// backend; findings are [IssueBroken].
		SeriousBefore VersionCode `yaml:"serious_before,omitempty"`
		// MinorBefore: releases below this have minor bugs with the
		// backend; findings are [IssueBuggy].
		MinorBefore VersionCode `yaml:"minor_before,omitempty"`
		// SlowBefore: releases below this are very slow with the backend;
		// findings are [IssueSlow], reported in server role only.
		SlowBefore VersionCode `yaml:"slow_before,omitempty"`
	}
)

// DefaultIssueTable returns the built-in defect list.
func DefaultIssueTable() IssueTable {
	return IssueTable{
		ThreadUnsafeBefore: versionOld(1, 3, 'b'),
		Backends: []BackendIssues{
			{Backend: "kqueue", SeriousBefore: versionOld(1, 1, 'b')},
			{Backend: "epoll", MinorBefore: MakeVersion(1, 1, 0)},
			{Backend: "poll", SeriousBefore: versionOld(1, 0, 'e'), SlowBefore: MakeVersion(1, 1, 0)},
			{Backend: "select", SlowBefore: MakeVersion(1, 1, 0)},
			{Backend: "win32", SeriousBefore: versionOld(1, 1, 'b')},
		},
	}
}

// ParseIssueTable decodes a YAML issue table, for deployments that need to
// extend or replace the built-in defect list. Thresholds are written as
// version strings and decoded with [DecodeVersion]; unknown fields and
// unrecognisable versions are rejected.
//
//	backends:
//	  - backend: kqueue
//	    serious_before: "1.1b"
//	  - backend: poll
//	    serious_before: "1.0e"
//	    slow_before: "1.1.0"
//	thread_unsafe_before: "1.3b"
func ParseIssueTable(data []byte) (IssueTable, error) {
	var t IssueTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return IssueTable{}, fmt.Errorf("evcompat: invalid issue table: %w", err)
	}
	return t, nil
}

// UnmarshalYAML decodes a version-string threshold via [DecodeVersion].
func (x *VersionCode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v := DecodeVersion(s)
	if v == VersionUnknownOther {
		return fmt.Errorf("evcompat: unrecognised version threshold %q", s)
	}
	*x = v
	return nil
}
