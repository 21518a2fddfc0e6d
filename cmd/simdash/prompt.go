package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/simdash/internal/api"
	"github.com/daviddao/simdash/internal/ui"
)

var promptAccent = lipgloss.Color("#7C3AED")

// promptNewSimulation asks for a name and machine, then creates the
// simulation. Aborting the form is not an error.
func promptNewSimulation(ctx context.Context, client ui.Service, out io.Writer) error {
	machines, err := client.ListMachines(ctx)
	if err != nil {
		return fmt.Errorf("load machines: %w", err)
	}

	var name string
	choice := string(api.NoMachine)
	if err := newSimulationForm(ui.MachineOptions(machines), &name, &choice).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	req, err := api.NewSimulationRequest(name, api.MachineChoice(choice))
	if err != nil {
		return err
	}
	if err := client.CreateSimulation(ctx, req); err != nil {
		return fmt.Errorf("create simulation: %w", err)
	}
	fmt.Fprintf(out, "created simulation %q (%s)\n", req.Name, req.Status)
	return nil
}

func newSimulationForm(opts []ui.MachineOption, name, choice *string) *huh.Form {
	theme := huh.ThemeCharm()
	theme.Focused.Base = theme.Focused.Base.BorderForeground(promptAccent)
	theme.Focused.Title = theme.Focused.Title.Foreground(promptAccent)

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Simulation Name").
				Value(name),

			huh.NewSelect[string]().
				Key("machine").
				Title("Machine").
				Description("None leaves the simulation pending").
				Options(machineSelectOptions(opts)...).
				Value(choice),
		),
	).WithTheme(theme)
}

func machineSelectOptions(opts []ui.MachineOption) []huh.Option[string] {
	out := make([]huh.Option[string], len(opts))
	for i, o := range opts {
		out[i] = huh.NewOption(o.Label, string(o.Choice))
	}
	return out
}
