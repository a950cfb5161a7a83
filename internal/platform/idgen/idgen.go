// Package idgen produces report identifiers.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Strategy names accepted by New.
const (
	StrategyV7 = "v7"
	StrategyV4 = "v4"
)

// Generator issues UUID strings. V7 identifiers sort by creation time, which
// keeps primary key inserts local; v4 is fully random.
type Generator struct {
	newUUID func() (uuid.UUID, error)
}

// New returns a generator for the named strategy.
func New(strategy string) (*Generator, error) {
	switch strategy {
	case StrategyV7, "":
		return &Generator{newUUID: uuid.NewV7}, nil
	case StrategyV4:
		return &Generator{newUUID: uuid.NewRandom}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}

// NewID returns a fresh identifier. Entropy exhaustion is not recoverable,
// so failures panic the same way uuid.New does.
func (g *Generator) NewID() string {
	id, err := g.newUUID()
	if err != nil {
		panic(fmt.Sprintf("generating id: %v", err))
	}

	return id.String()
}
