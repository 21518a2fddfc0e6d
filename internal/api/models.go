package api

import (
	"strconv"
)

// Status is the server-reported lifecycle state of a simulation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusFinished:
		return true
	}
	return false
}

// Machine is a compute resource a simulation can run on.
type Machine struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Availability bool   `json:"availability"`
}

// SimulationSummary is one row of the simulations list.
type SimulationSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	MachineName string `json:"machine_name"`
	Status      Status `json:"status"`
}

// Simulation is the full detail record of one simulation.
// Nullable columns are pointers.
type Simulation struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	CreationDate string   `json:"creation_date"`
	UpdateDate   string   `json:"update_date"`
	MachineID    *int64   `json:"machine_id"`
	MachineName  *string  `json:"machine_name"`
	Status       Status   `json:"status"`
	Epochs       *int64   `json:"epochs"`
	FinalLoss    *float64 `json:"final_loss"`
	TotalSeconds *float64 `json:"total_seconds"`
}

// Sample is one (elapsed seconds, loss) convergence point.
type Sample struct {
	Seconds float64 `json:"seconds"`
	Loss    float64 `json:"loss"`
}

// ListQuery filters and orders the simulations list.
// Empty fields are sent as empty query parameters.
type ListQuery struct {
	Status         Status
	OrderBy        string
	OrderDirection string
}

// NoMachine is the selector sentinel meaning "no machine assigned".
const NoMachine MachineChoice = "none"

// MachineChoice is the raw value of a machine selector: either NoMachine
// or a decimal machine id.
type MachineChoice string

// ChoiceFor returns the selector value for a machine.
func ChoiceFor(m Machine) MachineChoice {
	return MachineChoice(strconv.FormatInt(m.ID, 10))
}

// NewSimulation is the body of POST /simulations.
type NewSimulation struct {
	Name      string `json:"name"`
	MachineID *int64 `json:"machine_id"`
	Status    Status `json:"status"`
}

// NewSimulationRequest translates a form submission into a create request.
// The name is passed through as typed; the service decides what it accepts.
// The NoMachine sentinel becomes a null machine and pending status; any
// concrete machine means the simulation starts running on it.
func NewSimulationRequest(name string, choice MachineChoice) (NewSimulation, error) {
	if choice == NoMachine || choice == "" {
		return NewSimulation{Name: name, Status: StatusPending}, nil
	}
	id, err := strconv.ParseInt(string(choice), 10, 64)
	if err != nil {
		return NewSimulation{}, &ValidationError{Field: "machine_id", Message: "not a machine id: " + string(choice)}
	}
	return NewSimulation{Name: name, MachineID: &id, Status: StatusRunning}, nil
}

// AvailableMachines returns the machines whose availability flag is set,
// preserving order.
func AvailableMachines(machines []Machine) []Machine {
	out := make([]Machine, 0, len(machines))
	for _, m := range machines {
		if m.Availability {
			out = append(out, m)
		}
	}
	return out
}
