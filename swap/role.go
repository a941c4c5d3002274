package swap

import "fmt"

type Role string

const (
	RoleAlice Role = "alice" // initiator, knows the secret, funds alpha
	RoleBob   Role = "bob"   // responder, funds beta once alpha is funded
)

func (r Role) Valid() bool { return r == RoleAlice || r == RoleBob }

// Funds is the leg this role locks its asset into.
func (r Role) Funds() LegID {
	if r == RoleAlice {
		return Alpha
	}
	return Beta
}

// Redeems is the leg this role receives the counter asset from.
func (r Role) Redeems() LegID {
	if r == RoleAlice {
		return Beta
	}
	return Alpha
}

type LegID string

const (
	Alpha LegID = "alpha"
	Beta  LegID = "beta"
)

func ParseLegID(s string) (LegID, error) {
	switch LegID(s) {
	case Alpha, Beta:
		return LegID(s), nil
	}
	return "", fmt.Errorf("unknown leg %q", s)
}
