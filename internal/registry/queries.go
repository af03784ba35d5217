package registry

import "context"

// defaultPageLimit is applied when a paginated query omits the limit.
const defaultPageLimit = 30

func pageLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return defaultPageLimit
	}
	return *limit
}

// claimView projects a claim for query responses. Vote tallies are hidden
// (read as zero) until the voting window has closed, so in-flight votes stay
// secret.
func (s *Service) claimView(claim *Claim) ClaimView {
	view := ClaimView{
		ID:             claim.ID,
		Organization:   claim.Organization,
		Longitudes:     claim.Longitudes,
		Latitudes:      claim.Latitudes,
		TimeStarted:    claim.TimeStarted,
		TimeEnded:      claim.TimeEnded,
		DemandedTokens: claim.DemandedTokens,
		IpfsHashes:     claim.IpfsHashes,
		Status:         claim.Status,
		VotingEndTime:  claim.VotingEndTime,
	}
	if s.nowSeconds() >= claim.VotingEndTime {
		view.YesVotes = claim.YesVotes
		view.NoVotes = claim.NoVotes
	}
	return view
}

// GetConfig returns the singleton registry configuration.
func (s *Service) GetConfig(ctx context.Context) (*Config, error) {
	var cfg *Config
	err := s.store.View(func(tx *Tx) error {
		var err error
		cfg, err = tx.Config()
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetTotalCarbonCredits returns the running total of credits minted across
// all approved claims.
func (s *Service) GetTotalCarbonCredits(ctx context.Context) (uint64, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.TotalCarbonCredits, nil
}

// GetClaim returns a single claim by id.
func (s *Service) GetClaim(ctx context.Context, id uint64) (*ClaimView, error) {
	var view ClaimView
	err := s.store.View(func(tx *Tx) error {
		claim, err := tx.Claim(id)
		if err != nil {
			return err
		}
		view = s.claimView(claim)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListClaims returns up to limit claims in ascending id order, starting
// strictly after startAfter when given.
func (s *Service) ListClaims(ctx context.Context, startAfter *uint64, limit *int) ([]ClaimView, error) {
	n := pageLimit(limit)
	views := make([]ClaimView, 0, n)
	err := s.store.View(func(tx *Tx) error {
		return tx.ClaimsAscending(startAfter, func(claim *Claim) (bool, error) {
			views = append(views, s.claimView(claim))
			return len(views) >= n, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ListClaimsByStatus returns up to limit claims with the given status in
// ascending id order. The limit applies to matching claims, not to the
// number of records scanned.
func (s *Service) ListClaimsByStatus(ctx context.Context, status ClaimStatus, startAfter *uint64, limit *int) ([]ClaimView, error) {
	n := pageLimit(limit)
	views := make([]ClaimView, 0, n)
	err := s.store.View(func(tx *Tx) error {
		return tx.ClaimsAscending(startAfter, func(claim *Claim) (bool, error) {
			if claim.Status != status {
				return false, nil
			}
			views = append(views, s.claimView(claim))
			return len(views) >= n, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// GetOrganization returns the ledger account for addr, with all-zero
// defaults when the account has never been written.
func (s *Service) GetOrganization(ctx context.Context, addr string) (*OrganizationView, error) {
	var view OrganizationView
	err := s.store.View(func(tx *Tx) error {
		org, err := tx.Organization(addr)
		if err != nil {
			return err
		}
		view = OrganizationView{
			Address:         addr,
			ReputationScore: org.ReputationScore,
			CarbonCredits:   org.CarbonCredits,
			Debt:            org.Debt,
			TimesBorrowed:   org.TimesBorrowed,
			TotalBorrowed:   org.TotalBorrowed,
			TotalReturned:   org.TotalReturned,
			Name:            org.Name,
			Emissions:       org.Emissions,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListOrganizations returns up to limit persisted organizations in ascending
// address order, starting strictly after startAfter when non-empty.
func (s *Service) ListOrganizations(ctx context.Context, startAfter string, limit *int) ([]OrganizationListItem, error) {
	n := pageLimit(limit)
	items := make([]OrganizationListItem, 0, n)
	err := s.store.View(func(tx *Tx) error {
		return tx.OrganizationsAscending(startAfter, func(addr string, org *Organization) (bool, error) {
			items = append(items, OrganizationListItem{
				Address:         addr,
				Name:            org.Name,
				ReputationScore: org.ReputationScore,
				CarbonCredits:   org.CarbonCredits,
			})
			return len(items) >= n, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListUserLendRequests returns the lend requests where user is borrower or
// lender, annotated with that role. The limit bounds the id-ordered scan
// window; requests in the window where the user is neither party are
// excluded from the result.
func (s *Service) ListUserLendRequests(ctx context.Context, user string, startAfter *uint64, limit *int) ([]LendRequestView, error) {
	n := pageLimit(limit)
	views := make([]LendRequestView, 0, n)
	scanned := 0
	err := s.store.View(func(tx *Tx) error {
		return tx.LendRequestsAscending(startAfter, func(req *LendRequest) (bool, error) {
			scanned++
			role := ""
			switch user {
			case req.Borrower:
				role = "borrower"
			case req.Lender:
				role = "lender"
			}
			if role != "" {
				views = append(views, LendRequestView{
					ID:               req.ID,
					Borrower:         req.Borrower,
					Lender:           req.Lender,
					Status:           req.Status,
					EligibilityScore: req.EligibilityScore,
					ProofData:        req.ProofData,
					Time:             req.Time,
					Amount:           req.Amount,
					Role:             role,
				})
			}
			return scanned >= n, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ExpiredActiveClaimIDs lists claims still Active whose voting deadline has
// passed. Used by the finalization sweeper.
func (s *Service) ExpiredActiveClaimIDs(ctx context.Context) ([]uint64, error) {
	now := s.nowSeconds()
	var ids []uint64
	err := s.store.View(func(tx *Tx) error {
		return tx.ClaimsAscending(nil, func(claim *Claim) (bool, error) {
			if claim.Status == ClaimActive && now > claim.VotingEndTime {
				ids = append(ids, claim.ID)
			}
			return false, nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
