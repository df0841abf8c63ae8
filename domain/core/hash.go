package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	CohortHash Hash
	RunHash    Hash
)

// Constructors
func NewCohortHash(data []byte) CohortHash { return CohortHash(NewHash(data)) }
func NewRunHash(data []byte) RunHash       { return RunHash(NewHash(data)) }

// String conversions
func (h CohortHash) String() string { return Hash(h).String() }
func (h RunHash) String() string    { return Hash(h).String() }

// ComputeCohortHash derives a stable fingerprint for a set of patients.
// The patient list is sorted so insertion order never changes the hash.
func ComputeCohortHash(patientIDs []string) CohortHash {
	sorted := make([]string, len(patientIDs))
	copy(sorted, patientIDs)
	sort.Strings(sorted)

	var data strings.Builder
	for _, id := range sorted {
		data.WriteString(id)
		data.WriteString("\n")
	}

	return NewCohortHash([]byte(data.String()))
}

// ComputeRunHash fingerprints an analysis run from its cohort fingerprint
// and the configuration values that shaped it.
func ComputeRunHash(cohort CohortHash, params map[string]interface{}) RunHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	data.WriteString(cohort.String())
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", params[key]))
	}

	return NewRunHash([]byte(data.String()))
}
