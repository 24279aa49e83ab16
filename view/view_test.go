package view

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbreuer/reaktor/sim"
)

func testState(t *testing.T) *sim.State {
	t.Helper()
	s := sim.NewState()
	s.Start(time.Now())
	require.NoError(t, s.ToggleLever(sim.LeverA))
	require.NoError(t, s.ToggleLever(sim.LeverD))
	return s
}

// jsonKeys marshals a view and returns its top-level field names.
func jsonKeys(t *testing.T, v interface{}) map[string]struct{} {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))

	keys := make(map[string]struct{}, len(m))
	for k := range m {
		keys[k] = struct{}{}
	}
	return keys
}

func TestProject_Engineer(t *testing.T) {
	s := testState(t)

	v, ok := Project(s, sim.RoleEngineer).(EngineerView)
	require.True(t, ok)
	assert.Equal(t, s.Levers, v.Levers)
	assert.Equal(t, s.ErrorMessages, v.ErrorMessages)

	keys := jsonKeys(t, v)
	assert.Contains(t, keys, "errorMessages")
	assert.Contains(t, keys, "levers")
	assert.NotContains(t, keys, "temperature")
	assert.NotContains(t, keys, "pressure")
	assert.NotContains(t, keys, "statusLights")
}

func TestProject_Technician(t *testing.T) {
	s := testState(t)

	v, ok := Project(s, sim.RoleTechnician).(TechnicianView)
	require.True(t, ok)
	assert.Equal(t, s.StatusLights, v.StatusLights)

	keys := jsonKeys(t, v)
	assert.Contains(t, keys, "statusLights")
	assert.Len(t, keys, 1)
}

func TestProject_Scientist(t *testing.T) {
	s := testState(t)

	v, ok := Project(s, sim.RoleScientist).(ScientistView)
	require.True(t, ok)
	assert.Equal(t, s.Temperature, v.Temperature)
	assert.Equal(t, s.Pressure, v.Pressure)
	assert.Equal(t, s.ReactorStatus, v.ReactorStatus)

	keys := jsonKeys(t, v)
	assert.NotContains(t, keys, "levers")
	assert.NotContains(t, keys, "errorMessages")
	assert.NotContains(t, keys, "statusLights")
}

func TestProject_OperatorSeesEverything(t *testing.T) {
	s := testState(t)

	v, ok := Project(s, sim.RoleOperator).(*sim.State)
	require.True(t, ok)
	assert.Equal(t, s, v)
	assert.NotSame(t, s, v)
}

func TestProject_UnassignedRoleFailsOpen(t *testing.T) {
	s := testState(t)

	v, ok := Project(s, sim.Role("")).(*sim.State)
	require.True(t, ok)
	assert.Equal(t, s, v)
}

func TestProject_PureAndNonMutating(t *testing.T) {
	s := testState(t)
	before := s.Clone()

	for _, role := range append(sim.AllRoles(), sim.Role("")) {
		first := Project(s, role)
		second := Project(s, role)
		assert.Equal(t, first, second, "projection for %q must be deterministic", role)
	}

	assert.Equal(t, before, s, "Project must not mutate its input")
}
