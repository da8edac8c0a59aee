package session

// Role is a player's fixed position in the duel: the side that hosted
// the connection or the side that joined. Assigned once per session.
// The role string doubles as the player ID on the wire.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Opponent returns the other role. Applying it twice returns the
// original.
func (r Role) Opponent() Role {
	if r == RoleHost {
		return RoleClient
	}
	return RoleHost
}

func (r Role) Valid() bool { return r == RoleHost || r == RoleClient }
