package models

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError means the policy document itself is malformed.
// It is fatal at load time: no partial rule set is ever installed.
// Problems carries every bad rule so the document can be fixed in one pass.
type ConfigurationError struct {
	Source   string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid policy document %s:\n  %s",
		e.Source, strings.Join(e.Problems, "\n  "))
}

// ErrSnapshotUnavailable means the data provider returned nothing at
// all. A partial snapshot is never an error; see ClusterSnapshot.Missing.
var ErrSnapshotUnavailable = errors.New("cluster snapshot unavailable")
