package state

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Channel is a transient, network-addressed collection. The engine routes
// each tuple to the address held in the key column at AddressIndex; loopback
// channels deliver to the local instance.
type Channel struct {
	*base
	loopback     bool
	addressIndex int
}

// Loopback reports whether the channel always delivers to the local instance.
func (c *Channel) Loopback() bool { return c.loopback }

// AddressIndex is the position of the address column, or -1 when the channel
// carries none.
func (c *Channel) AddressIndex() int { return c.addressIndex }

// AddressField names the address column, or "" when there is none.
func (c *Channel) AddressField() string {
	if c.addressIndex < 0 {
		return ""
	}
	return c.schema.Key[c.addressIndex]
}

// channelSchema validates a channel schema and strips the address marker.
// A non-loopback channel must put its address field first in the key.
func channelSchema(s *types.Schema, loopback bool) (types.Schema, int, error) {
	if s == nil {
		if loopback {
			return types.DefaultSchema(), -1, nil
		}
		return types.NewSchema([]string{types.AddressField, types.DefaultValueField}), 0, nil
	}
	if err := s.Validate(); err != nil {
		return types.Schema{}, 0, err
	}
	for _, f := range s.Value {
		if strings.HasPrefix(f, types.AddressMarker) {
			return types.Schema{}, 0, fmt.Errorf("%w: address field %q must be a key field", types.ErrInvalidSchema, f)
		}
	}

	idx := -1
	key := make([]string, len(s.Key))
	for i, f := range s.Key {
		if strings.HasPrefix(f, types.AddressMarker) {
			if i != 0 {
				return types.Schema{}, 0, fmt.Errorf("%w: address field %q must be the first key field", types.ErrInvalidSchema, f)
			}
			idx = 0
		}
		key[i] = strings.TrimPrefix(f, types.AddressMarker)
	}
	if idx < 0 && !loopback {
		return types.Schema{}, 0, fmt.Errorf("%w: first key field %q is not marked %q", types.ErrMissingAddress, s.Key[0], types.AddressMarker)
	}
	return types.NewSchema(key, s.Value...), idx, nil
}

// Terminal is the instance's single line-oriented I/O collection.
type Terminal struct{ *base }

// Lines returns the pending lines in insertion order.
func (t *Terminal) Lines() []string {
	tuples := t.Tuples()
	out := make([]string, 0, len(tuples))
	for _, tu := range tuples {
		out = append(out, fmt.Sprint(tu[0]))
	}
	return out
}

func terminalSchema() types.Schema {
	return types.NewSchema([]string{"line"})
}
