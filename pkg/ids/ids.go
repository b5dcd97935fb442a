// Package ids defines the identifier types shared across every component:
// organizations, clusters, services and executions all key off of them.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// shortLen is the number of characters kept by Identifier.Short. Several
// cloud APIs cap resource-name length, so every long-form id also carries a
// stable short form usable in generated resource names.
const shortLen = 8

// Identifier wraps a UUID and exposes a stable short form for resource
// names that have length caps (load balancers, node group names, ...).
type Identifier struct {
	value uuid.UUID
}

// New generates a fresh random identifier.
func New() Identifier {
	return Identifier{value: uuid.New()}
}

// Parse builds an Identifier from its long (UUID) string form.
func Parse(s string) (Identifier, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return Identifier{}, fmt.Errorf("parsing identifier %q: %w", s, err)
	}
	return Identifier{value: v}, nil
}

// MustParse is Parse but panics on error; reserved for constants/tests.
func MustParse(s string) Identifier {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the long (UUID) form.
func (i Identifier) String() string {
	return i.value.String()
}

// Short returns the first 8 characters of the long form. It is stable for
// a given Identifier value since it is derived, not randomly generated.
func (i Identifier) Short() string {
	s := i.value.String()
	if len(s) < shortLen {
		return s
	}
	return s[:shortLen]
}

// IsZero reports whether the identifier was never assigned.
func (i Identifier) IsZero() bool {
	return i.value == uuid.Nil
}

// OrganizationID, ClusterID, ServiceID and ExecutionID are distinct named
// types over Identifier/string so that the compiler catches mixing them up
// across component boundaries, even though their underlying representation
// is shared.
type (
	OrganizationID Identifier
	ClusterID      Identifier
	ServiceID      Identifier
)

func (o OrganizationID) String() string { return Identifier(o).String() }
func (o OrganizationID) Short() string  { return Identifier(o).Short() }

func (c ClusterID) String() string { return Identifier(c).String() }
func (c ClusterID) Short() string  { return Identifier(c).Short() }

func (s ServiceID) String() string { return Identifier(s).String() }
func (s ServiceID) Short() string  { return Identifier(s).Short() }

// ExecutionID is unique per commit() call. Unlike the other identifiers it
// is not necessarily a UUID in every implementation, so it is kept as a
// plain string newtype; NewExecutionID still produces a UUID by default.
type ExecutionID string

// NewExecutionID returns a fresh execution id.
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.New().String())
}
