package registry

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/IronJam11/zk-carbon/pkg/safemath"
)

// CreateClaimRequest carries the caller-supplied claim fields. Coordinate
// lists, the observation window and the demanded amount are deliberately not
// validated; callers are trusted on these inputs.
type CreateClaimRequest struct {
	Longitudes     []string `json:"longitudes"`
	Latitudes      []string `json:"latitudes"`
	TimeStarted    uint64   `json:"time_started"`
	TimeEnded      uint64   `json:"time_ended"`
	DemandedTokens uint64   `json:"demanded_tokens"`
	IpfsHashes     []string `json:"ipfs_hashes"`
}

type CreateClaimResult struct {
	Method        string `json:"method"`
	ClaimID       uint64 `json:"claim_id"`
	Organization  string `json:"organization"`
	VotingEndTime uint64 `json:"voting_end_time"`
}

type CastVoteResult struct {
	Method  string `json:"method"`
	ClaimID uint64 `json:"claim_id"`
	Voter   string `json:"voter"`
}

type FinalizeVotingResult struct {
	Method  string      `json:"method"`
	ClaimID uint64      `json:"claim_id"`
	Status  ClaimStatus `json:"status"`
}

// CreateClaim registers a new claim with status Active and a voting deadline
// of now + the configured voting period. No credits move at creation time.
func (s *Service) CreateClaim(ctx context.Context, caller string, req CreateClaimRequest) (*CreateClaimResult, error) {
	var claim Claim
	err := s.store.Update(func(tx *Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		id, err := tx.NextClaimID()
		if err != nil {
			return err
		}
		end, err := safemath.Add(s.nowSeconds(), cfg.VotingPeriod)
		if err != nil {
			return err
		}
		claim = Claim{
			ID:             id,
			Organization:   caller,
			Longitudes:     req.Longitudes,
			Latitudes:      req.Latitudes,
			TimeStarted:    req.TimeStarted,
			TimeEnded:      req.TimeEnded,
			DemandedTokens: req.DemandedTokens,
			IpfsHashes:     req.IpfsHashes,
			Status:         ClaimActive,
			VotingEndTime:  end,
		}
		return tx.PutClaim(&claim)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("claim created",
		zap.Uint64("claim_id", claim.ID),
		zap.String("organization", caller),
		zap.Uint64("voting_end_time", claim.VotingEndTime))
	s.audit.Record(ctx, "create_claim", caller, map[string]string{
		"claim_id":        strconv.FormatUint(claim.ID, 10),
		"organization":    caller,
		"voting_end_time": strconv.FormatUint(claim.VotingEndTime, 10),
	})
	return &CreateClaimResult{
		Method:        "create_claim",
		ClaimID:       claim.ID,
		Organization:  caller,
		VotingEndTime: claim.VotingEndTime,
	}, nil
}

// ParseVoteOption normalizes a caller-supplied vote string.
func ParseVoteOption(raw string) (VoteOption, error) {
	switch strings.ToLower(raw) {
	case string(VoteYes):
		return VoteYes, nil
	case string(VoteNo):
		return VoteNo, nil
	default:
		return "", ErrInvalidResponse
	}
}

// CastVote records a single vote for the caller on an active claim and bumps
// the matching tally by one. Voting is open while now <= voting_end_time.
func (s *Service) CastVote(ctx context.Context, caller string, claimID uint64, option VoteOption) (*CastVoteResult, error) {
	err := s.store.Update(func(tx *Tx) error {
		claim, err := tx.Claim(claimID)
		if err != nil {
			return err
		}
		if s.nowSeconds() > claim.VotingEndTime {
			return ErrVotingEnded
		}
		if tx.HasVote(claimID, caller) {
			return ErrAlreadyVoted
		}
		if err := tx.PutVote(claimID, caller, option); err != nil {
			return err
		}
		switch option {
		case VoteYes:
			claim.YesVotes, err = safemath.Add(claim.YesVotes, 1)
		case VoteNo:
			claim.NoVotes, err = safemath.Add(claim.NoVotes, 1)
		default:
			return ErrInvalidResponse
		}
		if err != nil {
			return err
		}
		return tx.PutClaim(claim)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "cast_vote", caller, map[string]string{
		"claim_id": strconv.FormatUint(claimID, 10),
		"voter":    caller,
	})
	return &CastVoteResult{Method: "cast_vote", ClaimID: claimID, Voter: caller}, nil
}

// FinalizeVoting closes an active claim once its deadline has passed. It is
// a permissionless pull trigger: any caller may invoke it. Ties favor
// approval. On approval the claimant is credited the demanded tokens and the
// global total grows by the same amount; every voter on the winning side
// gains one reputation point, losers are untouched. The Active-status
// precondition makes a second finalize call fail instead of double-crediting.
func (s *Service) FinalizeVoting(ctx context.Context, caller string, claimID uint64) (*FinalizeVotingResult, error) {
	var status ClaimStatus
	err := s.store.Update(func(tx *Tx) error {
		claim, err := tx.Claim(claimID)
		if err != nil {
			return err
		}
		if s.nowSeconds() <= claim.VotingEndTime {
			return ErrVotingNotEnded
		}
		if claim.Status != ClaimActive {
			return ErrClaimNotActive
		}
		approved := claim.YesVotes >= claim.NoVotes
		if approved {
			claim.Status = ClaimApproved
		} else {
			claim.Status = ClaimRejected
		}

		if approved {
			org, err := tx.Organization(claim.Organization)
			if err != nil {
				return err
			}
			org.CarbonCredits, err = safemath.Add(org.CarbonCredits, claim.DemandedTokens)
			if err != nil {
				return err
			}
			if err := tx.PutOrganization(claim.Organization, org); err != nil {
				return err
			}

			cfg, err := tx.Config()
			if err != nil {
				return err
			}
			cfg.TotalCarbonCredits, err = safemath.Add(cfg.TotalCarbonCredits, claim.DemandedTokens)
			if err != nil {
				return err
			}
			if err := tx.PutConfig(cfg); err != nil {
				return err
			}
		}

		// Reputation pass, in ascending voter key order for determinism.
		err = tx.VotesAscending(claimID, func(voter string, option VoteOption) error {
			correct := (option == VoteYes && approved) || (option == VoteNo && !approved)
			if !correct {
				return nil
			}
			org, err := tx.Organization(voter)
			if err != nil {
				return err
			}
			org.ReputationScore, err = safemath.Add(org.ReputationScore, 1)
			if err != nil {
				return err
			}
			return tx.PutOrganization(voter, org)
		})
		if err != nil {
			return err
		}

		status = claim.Status
		return tx.PutClaim(claim)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("claim finalized",
		zap.Uint64("claim_id", claimID),
		zap.String("status", string(status)))
	s.audit.Record(ctx, "finalize_voting", caller, map[string]string{
		"claim_id": strconv.FormatUint(claimID, 10),
		"status":   string(status),
	})
	return &FinalizeVotingResult{Method: "finalize_voting", ClaimID: claimID, Status: status}, nil
}
