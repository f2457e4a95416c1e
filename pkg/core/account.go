package core

import (
	"os/user"
	"strconv"
)

// AccountResolver maps numeric owner and group ids to names. An unresolved
// id yields an empty string.
type AccountResolver interface {
	LookupNames(uid, gid uint32) (uname, gname string)
}

// AccountResolverFunc adapts a function to AccountResolver
type AccountResolverFunc func(uid, gid uint32) (string, string)

// LookupNames calls f
func (f AccountResolverFunc) LookupNames(uid, gid uint32) (string, string) {
	return f(uid, gid)
}

// NoAccounts resolves nothing; headers carry empty owner and group names
var NoAccounts AccountResolver = AccountResolverFunc(func(uint32, uint32) (string, string) {
	return "", ""
})

// SystemAccounts resolves ids through the system account database and
// caches every answer, misses included. It is not safe for concurrent use.
type SystemAccounts struct {
	users  map[uint32]string
	groups map[uint32]string
}

// NewSystemAccounts returns a resolver with an empty cache
func NewSystemAccounts() *SystemAccounts {
	return &SystemAccounts{
		users:  make(map[uint32]string),
		groups: make(map[uint32]string),
	}
}

// LookupNames implements AccountResolver
func (s *SystemAccounts) LookupNames(uid, gid uint32) (string, string) {
	uname, ok := s.users[uid]
	if !ok {
		if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
			uname = u.Username
		}
		s.users[uid] = uname
	}
	gname, ok := s.groups[gid]
	if !ok {
		if g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10)); err == nil {
			gname = g.Name
		}
		s.groups[gid] = gname
	}
	return uname, gname
}
