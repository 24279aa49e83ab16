// sim/roles.go
package sim

import (
	"fmt"
	"math/rand"
)

// Role is one of the four fixed player responsibilities. Exactly one of each
// exists per active room.
type Role string

const (
	RoleEngineer   Role = "Engineer"
	RoleTechnician Role = "Technician"
	RoleScientist  Role = "Scientist"
	RoleOperator   Role = "Operator"
)

// AllRoles returns the fixed role set in its canonical order.
func AllRoles() []Role {
	return []Role{RoleEngineer, RoleTechnician, RoleScientist, RoleOperator}
}

// AssignRoles maps each player to a role drawn uniformly at random from the
// remaining pool, one draw per player in the given order. The result is a
// uniform-random bijection; no two players share a role. The player count
// must match the role count exactly.
func AssignRoles(players []string, rng *rand.Rand) (map[string]Role, error) {
	pool := AllRoles()
	if len(players) != len(pool) {
		return nil, fmt.Errorf("role assignment needs exactly %d players, got %d", len(pool), len(players))
	}

	assignment := make(map[string]Role, len(players))
	for _, player := range players {
		i := rng.Intn(len(pool))
		assignment[player] = pool[i]
		pool = append(pool[:i], pool[i+1:]...)
	}
	return assignment, nil
}
