package domain

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cespare/xxhash/v2"
)

type Agent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Roster []Agent

func DefaultRoster() Roster {
	return Roster{
		{ID: "agent_001", Name: "Sarah Connor"},
		{ID: "agent_002", Name: "John Wick"},
		{ID: "agent_003", Name: "Ethan Hunt"},
	}
}

// ParseRoster reads "id:name" pairs separated by commas. An empty value
// yields the default roster.
func ParseRoster(raw string) (Roster, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRoster(), nil
	}
	var roster Roster
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, ok := strings.Cut(part, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRoster, part)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate agent %q", ErrInvalidRoster, id)
		}
		seen[id] = struct{}{}
		roster = append(roster, Agent{ID: id, Name: name})
	}
	if len(roster) == 0 {
		return nil, ErrInvalidRoster
	}
	return roster, nil
}

// Assign maps a case onto the roster deterministically.
func (r Roster) Assign(caseID snowflake.ID) Agent {
	if len(r) == 0 {
		return Agent{}
	}
	idx := xxhash.Sum64String(caseID.String()) % uint64(len(r))
	return r[idx]
}
