package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock drives the service's deadline checks deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	svc := NewService(store, zap.NewNop(), nil)
	svc.now = clock.Now
	return svc, clock
}

// seedOrganization writes an account directly, bypassing the command surface.
func seedOrganization(t *testing.T, svc *Service, addr string, org Organization) {
	t.Helper()
	err := svc.store.Update(func(tx *Tx) error {
		return tx.PutOrganization(addr, &org)
	})
	require.NoError(t, err)
}

// storedClaim reads a claim raw, without the query layer's tally hiding.
func storedClaim(t *testing.T, svc *Service, id uint64) *Claim {
	t.Helper()
	var claim *Claim
	err := svc.store.View(func(tx *Tx) error {
		var err error
		claim, err = tx.Claim(id)
		return err
	})
	require.NoError(t, err)
	return claim
}

func storedOrganization(t *testing.T, svc *Service, addr string) *Organization {
	t.Helper()
	var org *Organization
	err := svc.store.View(func(tx *Tx) error {
		var err error
		org, err = tx.Organization(addr)
		return err
	})
	require.NoError(t, err)
	return org
}
