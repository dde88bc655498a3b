package models

import "fmt"

type PermissionLevel string

const (
	PermissionVisitor        PermissionLevel = "visitor"
	PermissionUser           PermissionLevel = "user"
	PermissionAdminLimited   PermissionLevel = "admin:limited"
	PermissionAdminUnlimited PermissionLevel = "admin:unlimited"
)

// permissionRanking is ordered from least to most privileged.
var permissionRanking = []PermissionLevel{
	PermissionVisitor,
	PermissionUser,
	PermissionAdminLimited,
	PermissionAdminUnlimited,
}

func (p PermissionLevel) rank() int {
	for i, level := range permissionRanking {
		if level == p {
			return i
		}
	}
	return -1
}

func (p PermissionLevel) Valid() bool {
	return p.rank() >= 0
}

// Satisfies reports whether p is at least as privileged as requirement.
// Unknown levels never satisfy anything.
func (p PermissionLevel) Satisfies(requirement PermissionLevel) bool {
	have, need := p.rank(), requirement.rank()
	if have < 0 || need < 0 {
		return false
	}
	return have >= need
}

func ParsePermissionLevel(s string) (PermissionLevel, error) {
	level := PermissionLevel(s)
	if !level.Valid() {
		return "", fmt.Errorf("unknown permission level: %q", s)
	}
	return level, nil
}

// ClientIdentity is the safe view of a client: no credentials, only what the
// gateway stamps onto every message.
type ClientIdentity struct {
	ID              int64           `json:"id"`
	Username        string          `json:"username"`
	PermissionLevel PermissionLevel `json:"permissionLevel"`
	Chips           int64           `json:"chips"`
}

func (c ClientIdentity) Can(requirement PermissionLevel) bool {
	return c.PermissionLevel.Satisfies(requirement)
}
