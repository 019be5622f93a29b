// Package mint produces the short-lived proof-of-presence tokens rotated
// during an open attendance session.
package mint

import (
	"time"

	"github.com/google/uuid"

	"rollcall/pkg/types"
)

// Mint generates opaque tokens. Tokens are v4 UUIDs: unguessable, and
// collision-free for any realistic session volume.
type Mint struct {
	now func() time.Time
}

func New() *Mint {
	return &Mint{now: time.Now}
}

// NewWithClock injects the clock; tests pin it.
func NewWithClock(now func() time.Time) *Mint {
	return &Mint{now: now}
}

// Token returns a freshly minted token stamped with its mint time.
func (m *Mint) Token() types.ActiveToken {
	return types.ActiveToken{
		Token:    uuid.NewString(),
		MintedAt: m.now(),
	}
}
