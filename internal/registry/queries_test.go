package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func u64Ptr(v uint64) *uint64 { return &v }

func TestClaimTalliesHiddenUntilClose(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	instantiate(t, svc)
	id := createClaim(t, svc, "org1", 100)

	_, err := svc.CastVote(ctx, "voter1", id, VoteYes)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, "voter2", id, VoteNo)
	require.NoError(t, err)

	// While voting is open the tallies read as zero.
	view, err := svc.GetClaim(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), view.YesVotes)
	assert.Equal(t, uint64(0), view.NoVotes)

	// At the deadline they become visible, even before finalization.
	clock.advance(time.Duration(votingPeriod) * time.Second)
	view, err = svc.GetClaim(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), view.YesVotes)
	assert.Equal(t, uint64(1), view.NoVotes)

	// Listings hide tallies the same way.
	views, err := svc.ListClaims(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(1), views[0].YesVotes)
}

func TestGetClaimNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	instantiate(t, svc)

	_, err := svc.GetClaim(context.Background(), 9)
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

func TestListClaimsPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	instantiate(t, svc)
	for i := 0; i < 5; i++ {
		createClaim(t, svc, "org1", uint64(i))
	}

	page, err := svc.ListClaims(ctx, u64Ptr(1), intPtr(2))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].ID)
	assert.Equal(t, uint64(3), page[1].ID)

	// Pages are contiguous with the full listing.
	all, err := svc.ListClaims(ctx, nil, intPtr(100))
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, all[2].ID, page[0].ID)
	assert.Equal(t, all[3].ID, page[1].ID)

	// Default limit applies when none is supplied.
	defaulted, err := svc.ListClaims(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, defaulted, 5)
}

func TestListClaimsByStatus(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	instantiate(t, svc)

	first := createClaim(t, svc, "org1", 10)
	second := createClaim(t, svc, "org1", 20)
	third := createClaim(t, svc, "org1", 30)

	_, err := svc.CastVote(ctx, "voter1", second, VoteNo)
	require.NoError(t, err)

	clock.advance(time.Duration(votingPeriod+1) * time.Second)
	_, err = svc.FinalizeVoting(ctx, "anyone", first)
	require.NoError(t, err)
	_, err = svc.FinalizeVoting(ctx, "anyone", second)
	require.NoError(t, err)

	approved, err := svc.ListClaimsByStatus(ctx, ClaimApproved, nil, nil)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, first, approved[0].ID)

	rejected, err := svc.ListClaimsByStatus(ctx, ClaimRejected, nil, nil)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, second, rejected[0].ID)

	active, err := svc.ListClaimsByStatus(ctx, ClaimActive, nil, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, third, active[0].ID)
}

func TestGetOrganizationDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	org, err := svc.GetOrganization(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", org.Address)
	assert.Equal(t, uint64(0), org.CarbonCredits)
	assert.Equal(t, uint64(0), org.Debt)
	assert.Equal(t, "", org.Name)
}

func TestListOrganizationsPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, addr := range []string{"orgC", "orgA", "orgE", "orgB", "orgD"} {
		seedOrganization(t, svc, addr, Organization{Name: "name-" + addr})
	}

	page, err := svc.ListOrganizations(ctx, "orgA", intPtr(2))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "orgB", page[0].Address)
	assert.Equal(t, "orgC", page[1].Address)

	// All entries are strictly greater than the cursor and in key order.
	for _, item := range page {
		assert.Greater(t, item.Address, "orgA")
	}

	all, err := svc.ListOrganizations(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, []string{"orgA", "orgB", "orgC", "orgD", "orgE"},
		[]string{all[0].Address, all[1].Address, all[2].Address, all[3].Address, all[4].Address})
}

func TestListUserLendRequestsRoles(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	instantiate(t, svc)

	_, err := svc.RequestTokens(ctx, "alice", "bob", 10)
	require.NoError(t, err)
	_, err = svc.RequestTokens(ctx, "bob", "carol", 20)
	require.NoError(t, err)
	_, err = svc.RequestTokens(ctx, "carol", "alice", 30)
	require.NoError(t, err)

	bobs, err := svc.ListUserLendRequests(ctx, "bob", nil, nil)
	require.NoError(t, err)
	require.Len(t, bobs, 2)
	assert.Equal(t, "lender", bobs[0].Role)
	assert.Equal(t, "borrower", bobs[1].Role)

	// Requests where the user is neither party are excluded.
	outsider, err := svc.ListUserLendRequests(ctx, "mallory", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, outsider)
}

func TestListUserLendRequestsScanWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	instantiate(t, svc)

	// Request 0 involves bob, requests 1 and 2 do not, request 3 does.
	_, err := svc.RequestTokens(ctx, "alice", "bob", 10)
	require.NoError(t, err)
	_, err = svc.RequestTokens(ctx, "carol", "dave", 20)
	require.NoError(t, err)
	_, err = svc.RequestTokens(ctx, "carol", "dave", 30)
	require.NoError(t, err)
	_, err = svc.RequestTokens(ctx, "bob", "dave", 40)
	require.NoError(t, err)

	// The limit bounds the scanned id window, so a window of 2 only sees
	// request 0 for bob.
	window, err := svc.ListUserLendRequests(ctx, "bob", nil, intPtr(2))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, uint64(0), window[0].ID)

	// Continuing after the window picks up the later request.
	rest, err := svc.ListUserLendRequests(ctx, "bob", u64Ptr(1), nil)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, uint64(3), rest[0].ID)
}

func TestExpiredActiveClaimIDs(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	instantiate(t, svc)

	first := createClaim(t, svc, "org1", 10)
	clock.advance(time.Duration(votingPeriod+1) * time.Second)
	second := createClaim(t, svc, "org1", 20)

	ids, err := svc.ExpiredActiveClaimIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{first}, ids)

	_, err = svc.FinalizeVoting(ctx, "anyone", first)
	require.NoError(t, err)

	ids, err = svc.ExpiredActiveClaimIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// The second claim shows up once its own window lapses.
	clock.advance(time.Duration(votingPeriod+1) * time.Second)
	ids, err = svc.ExpiredActiveClaimIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{second}, ids)
}
