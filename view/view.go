// view/view.go
package view

import (
	"github.com/mbreuer/reaktor/sim"
)

// Each role observes only its slice of the simulation. This is a gameplay
// boundary, not a security one; the server simply never sends a role the
// fields outside its view.

type EngineerView struct {
	ErrorMessages []string   `json:"errorMessages"`
	Levers        sim.Levers `json:"levers"`
}

type TechnicianView struct {
	StatusLights sim.StatusLights `json:"statusLights"`
}

type ScientistView struct {
	Temperature   int        `json:"temperature"`
	Pressure      int        `json:"pressure"`
	ReactorStatus sim.Status `json:"reactorStatus"`
}

// Project derives the role-filtered view of a state. The input is never
// mutated. The Operator, and any player without an assigned role, sees the
// full state.
func Project(state *sim.State, role sim.Role) interface{} {
	switch role {
	case sim.RoleEngineer:
		return EngineerView{
			ErrorMessages: append([]string{}, state.ErrorMessages...),
			Levers:        state.Levers,
		}
	case sim.RoleTechnician:
		return TechnicianView{StatusLights: state.StatusLights}
	case sim.RoleScientist:
		return ScientistView{
			Temperature:   state.Temperature,
			Pressure:      state.Pressure,
			ReactorStatus: state.ReactorStatus,
		}
	default:
		return state.Clone()
	}
}
