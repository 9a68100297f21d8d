package core

import "github.com/segmentio/ksuid"

// ID is a sortable unique identifier for executions and audit records.
type ID string

func NewID() ID {
	return ID(ksuid.New().String())
}

func (i ID) String() string {
	return string(i)
}
