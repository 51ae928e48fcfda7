// AngelaMos | 2026
// role.go

package role

import "strings"

// Role is a named authorization role. Names compare case-insensitively.
type Role string

const (
	Admin Role = "Admin"
	User  Role = "User"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Equal(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}

func (r Role) IsAdmin() bool {
	return r.Equal(Admin)
}

// Canonical maps known role names onto their declared spelling and leaves
// unknown names untouched.
func Canonical(name string) Role {
	for _, known := range []Role{Admin, User} {
		if known.Equal(Role(name)) {
			return known
		}
	}
	return Role(name)
}

type Set map[string]struct{}

func NewSet(roles ...Role) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		s[strings.ToLower(string(r))] = struct{}{}
	}
	return s
}

func (s Set) Contains(r Role) bool {
	_, ok := s[strings.ToLower(string(r))]
	return ok
}

func (s Set) Empty() bool {
	return len(s) == 0
}
