package ratelimit

import "time"

type Scope int

const (
	ScopeAddress Scope = iota
	ScopeIdentity
	ScopeList
)

// Subject carries the values a Rule can be scoped to.
type Subject struct {
	Address  string
	Identity string
	ListID   string
}

type Rule struct {
	Name        string
	Scope       Scope
	MaxRequests int64
	Window      time.Duration
}

// Key builds the counter key, e.g. "ip:10.0.0.1" or "list_write:<list id>".
func (r Rule) Key(s Subject) string {
	var v string
	switch r.Scope {
	case ScopeAddress:
		v = s.Address
	case ScopeIdentity:
		v = s.Identity
	case ScopeList:
		v = s.ListID
	}
	if v == "" {
		v = "unknown"
	}
	return r.Name + ":" + v
}

const defaultWindow = time.Minute

var (
	CreateListRules = []Rule{
		{Name: "ip", Scope: ScopeAddress, MaxRequests: 60, Window: defaultWindow},
		{Name: "client_lists", Scope: ScopeIdentity, MaxRequests: 20, Window: defaultWindow},
	}

	DeleteListRules = []Rule{
		{Name: "ip", Scope: ScopeAddress, MaxRequests: 60, Window: defaultWindow},
		{Name: "client_delete_list", Scope: ScopeIdentity, MaxRequests: 10, Window: defaultWindow},
	}

	// WriteItemRules covers item create, update and delete.
	WriteItemRules = []Rule{
		{Name: "ip", Scope: ScopeAddress, MaxRequests: 120, Window: defaultWindow},
		{Name: "client_write", Scope: ScopeIdentity, MaxRequests: 60, Window: defaultWindow},
		{Name: "list_write", Scope: ScopeList, MaxRequests: 60, Window: defaultWindow},
	}
)
