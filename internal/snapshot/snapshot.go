// Package snapshot builds point-in-time views of the simulation service.
//
// A ListSnapshot captures machines and the filtered simulations list at
// one moment. It backs the --json dump and the list page's status counts.
package snapshot

import (
	"context"
	"time"

	"github.com/daviddao/simdash/internal/api"
)

// Source is the part of the REST client a snapshot needs.
type Source interface {
	ListMachines(ctx context.Context) ([]api.Machine, error)
	ListSimulations(ctx context.Context, q api.ListQuery) ([]api.SimulationSummary, error)
}

// ListSnapshot is an immutable view of machines and simulations.
type ListSnapshot struct {
	Machines    []api.Machine
	Simulations []api.SimulationSummary
	Query       api.ListQuery

	// Counts.
	AvailableMachines int
	ByStatus          map[api.Status]int

	// Timestamp of snapshot creation.
	BuiltAt time.Time
}

// Build queries the service and returns a complete snapshot.
func Build(ctx context.Context, src Source, q api.ListQuery) (*ListSnapshot, error) {
	machines, err := src.ListMachines(ctx)
	if err != nil {
		return nil, err
	}
	sims, err := src.ListSimulations(ctx, q)
	if err != nil {
		return nil, err
	}
	return &ListSnapshot{
		Machines:          machines,
		Simulations:       sims,
		Query:             q,
		AvailableMachines: len(api.AvailableMachines(machines)),
		ByStatus:          CountByStatus(sims),
		BuiltAt:           time.Now(),
	}, nil
}

// CountByStatus tallies simulations per status.
func CountByStatus(sims []api.SimulationSummary) map[api.Status]int {
	counts := make(map[api.Status]int, 3)
	for _, s := range sims {
		counts[s.Status]++
	}
	return counts
}
