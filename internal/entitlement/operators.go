package entitlement

import (
	"strconv"
	"strings"
)

// Operators is the trusted set allowed to attest payments.
type Operators struct {
	ids map[int64]struct{}
}

func NewOperators(ids ...int64) *Operators {
	o := &Operators{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		if id != 0 {
			o.ids[id] = struct{}{}
		}
	}
	return o
}

// ParseOperatorIDs accepts ids separated by commas, semicolons or whitespace
// and skips anything that is not an integer.
func ParseOperatorIDs(raw string) []int64 {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\t'
	})
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (o *Operators) IsOperator(userID int64) bool {
	if o == nil {
		return false
	}
	_, ok := o.ids[userID]
	return ok
}
