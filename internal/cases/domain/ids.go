package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ParseID parses a case id from its decimal string form.
func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
