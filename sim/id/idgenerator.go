// Package id provides identifiers for messages, events and runs.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	Generate() string
}

// NewIDGenerator returns a generator that produces 1, 2, 3, ... Sequential
// IDs keep traces identical between runs of the same model.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)

	return id
}

var defaultGenerator = NewIDGenerator()

// Generate returns the next ID of the process-wide sequential generator.
func Generate() string {
	return defaultGenerator.Generate()
}

// RunID returns a globally unique ID for a simulation run. It is used to
// name output files and is never part of the simulated state.
func RunID() string {
	return xid.New().String()
}
