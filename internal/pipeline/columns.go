package pipeline

import (
	"fmt"
	"strings"

	"github.com/ignite/eventpass/internal/domain"
)

// Cycle carries what one poll cycle resolved from the header row.
type Cycle struct {
	Headers []string
	Columns domain.Columns
}

// ResolveColumns finds the index of every required header. Every missing
// header is reported in a single ErrMissingColumn error.
func ResolveColumns(headers []string, names domain.ColumnNames) (domain.Columns, error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		i, ok := index[name]
		if !ok {
			missing = append(missing, fmt.Sprintf("%q", name))
			return -1
		}
		return i
	}

	cols := domain.Columns{
		Name:         lookup(names.Name),
		Email:        lookup(names.Email),
		TicketStatus: lookup(names.TicketStatus),
		EmailStatus:  lookup(names.EmailStatus),
		AttendeeID:   lookup(domain.AttendeeIDColumn),
	}
	if len(missing) > 0 {
		return domain.Columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}
