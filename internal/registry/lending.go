package registry

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/IronJam11/zk-carbon/pkg/safemath"
)

// Lend request decision strings, compared after lowercasing.
const (
	DecisionAccepted = "accepted"
	DecisionDenied   = "denied"
)

type RequestTokensResult struct {
	Method           string `json:"method"`
	RequestID        uint64 `json:"request_id"`
	Borrower         string `json:"borrower"`
	Lender           string `json:"lender"`
	Amount           uint64 `json:"amount"`
	EligibilityScore uint64 `json:"eligibility_score"`
}

type RespondToLendRequestResult struct {
	Method    string `json:"method"`
	RequestID uint64 `json:"request_id"`
	Lender    string `json:"lender"`
	Borrower  string `json:"borrower"`
	Amount    uint64 `json:"amount"`
	Response  string `json:"response"`
}

type RepayTokensResult struct {
	Method   string `json:"method"`
	Borrower string `json:"borrower"`
	Lender   string `json:"lender"`
	Amount   uint64 `json:"amount"`
}

type VerifyEligibilityResult struct {
	Method           string `json:"method"`
	Borrower         string `json:"borrower"`
	Lender           string `json:"lender"`
	Amount           uint64 `json:"amount"`
	EligibilityScore uint64 `json:"eligibility_score"`
	ProofHex         string `json:"proof_hex"`
}

// eligibilityInputs is the borrower/lender ledger snapshot the scoring
// formula reads. Each field must fit in 32 bits; larger balances fail the
// call with an overflow error instead of being truncated.
type eligibilityInputs struct {
	borrowerEmissions  uint32
	borrowerReturned   uint32
	borrowerBorrowed   uint32
	borrowerDebt       uint32
	borrowerCredits    uint32
	borrowerReputation uint32
	lenderCredits      uint32
	lenderDebt         uint32
}

func newEligibilityInputs(borrower, lender *Organization) (*eligibilityInputs, error) {
	in := &eligibilityInputs{}
	for _, f := range []struct {
		dst *uint32
		src uint64
	}{
		{&in.borrowerEmissions, borrower.Emissions},
		{&in.borrowerReturned, borrower.TotalReturned},
		{&in.borrowerBorrowed, borrower.TotalBorrowed},
		{&in.borrowerDebt, borrower.Debt},
		{&in.borrowerCredits, borrower.CarbonCredits},
		{&in.borrowerReputation, borrower.ReputationScore},
		{&in.lenderCredits, lender.CarbonCredits},
		{&in.lenderDebt, lender.Debt},
	} {
		v, err := safemath.ToUint32(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return in, nil
}

// score computes the deterministic 0-100 eligibility score:
// reputation + total_returned - debt/2 - emissions/10 + credits + 50,
// with truncating division, clamped to [0, 100].
func (in *eligibilityInputs) score() uint64 {
	score := int64(in.borrowerReputation) + int64(in.borrowerReturned) -
		int64(in.borrowerDebt)/2 - int64(in.borrowerEmissions)/10 +
		int64(in.borrowerCredits) + 50
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return uint64(score)
}

func (in *eligibilityInputs) rawProof() string {
	return fmt.Sprintf("%d%d%d%d%d%d%d%d",
		in.borrowerEmissions, in.borrowerReturned, in.borrowerBorrowed,
		in.borrowerDebt, in.borrowerCredits, in.borrowerReputation,
		in.lenderCredits, in.lenderDebt)
}

// requestProof is the audit artifact attached to a lend request. Not a
// cryptographic commitment; nothing verifies it downstream.
func (in *eligibilityInputs) requestProof(score uint64) string {
	return fmt.Sprintf("mock_proof_%s_eligibility_%d",
		hex.EncodeToString([]byte(in.rawProof())), score)
}

// verificationProof is the artifact stored by the standalone eligibility
// attestation path, keyed by (borrower, lender).
func (in *eligibilityInputs) verificationProof(score uint64) []byte {
	return []byte(in.rawProof() + strconv.FormatUint(score, 10))
}

// RequestTokens opens a lend request from the caller (borrower) to lender.
// The eligibility score and proof are computed from the current ledger
// snapshot; no balance check happens until the lender responds.
func (s *Service) RequestTokens(ctx context.Context, caller, lender string, amount uint64) (*RequestTokensResult, error) {
	var req LendRequest
	err := s.store.Update(func(tx *Tx) error {
		if !tx.Instantiated() {
			return ErrNotInstantiated
		}
		borrowerOrg, err := tx.Organization(caller)
		if err != nil {
			return err
		}
		lenderOrg, err := tx.Organization(lender)
		if err != nil {
			return err
		}
		inputs, err := newEligibilityInputs(borrowerOrg, lenderOrg)
		if err != nil {
			return err
		}
		score := inputs.score()

		id, err := tx.NextLendRequestID()
		if err != nil {
			return err
		}
		req = LendRequest{
			ID:               id,
			Borrower:         caller,
			Lender:           lender,
			Amount:           amount,
			EligibilityScore: score,
			ProofData:        inputs.requestProof(score),
			Status:           LendActive,
			Time:             s.nowSeconds(),
		}
		return tx.PutLendRequest(&req)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lend request created",
		zap.Uint64("request_id", req.ID),
		zap.String("borrower", caller),
		zap.String("lender", lender),
		zap.Uint64("amount", amount))
	s.audit.Record(ctx, "request_tokens", caller, map[string]string{
		"request_id":       strconv.FormatUint(req.ID, 10),
		"borrower":         caller,
		"lender":           lender,
		"requested_tokens": strconv.FormatUint(amount, 10),
	})
	return &RequestTokensResult{
		Method:           "request_tokens",
		RequestID:        req.ID,
		Borrower:         caller,
		Lender:           lender,
		Amount:           amount,
		EligibilityScore: req.EligibilityScore,
	}, nil
}

// RespondToLendRequest resolves an active lend request. Only the designated
// lender may respond, with "accepted" or "denied" (case-insensitive). Denial
// is terminal with no balance effect. Acceptance moves the amount from
// lender to borrower and books the borrower's debt; the two account writes
// and the status write commit as one unit.
func (s *Service) RespondToLendRequest(ctx context.Context, caller string, requestID uint64, decision string) (*RespondToLendRequestResult, error) {
	var req LendRequest
	normalized := strings.ToLower(decision)
	err := s.store.Update(func(tx *Tx) error {
		loaded, err := tx.LendRequest(requestID)
		if err != nil {
			return err
		}
		req = *loaded
		if req.Lender != caller {
			return ErrUnauthorized
		}
		if req.Status != LendActive {
			return ErrRequestNotActive
		}
		if normalized != DecisionAccepted && normalized != DecisionDenied {
			return ErrInvalidResponse
		}

		if normalized == DecisionDenied {
			req.Status = LendRejected
			return tx.PutLendRequest(&req)
		}

		lenderOrg, err := tx.Organization(caller)
		if err != nil {
			return err
		}
		borrowerOrg, err := tx.Organization(req.Borrower)
		if err != nil {
			return err
		}
		if lenderOrg.CarbonCredits < req.Amount {
			return ErrNotEnoughCredits
		}
		lenderOrg.CarbonCredits, err = safemath.Sub(lenderOrg.CarbonCredits, req.Amount)
		if err != nil {
			return err
		}
		borrowerOrg.CarbonCredits, err = safemath.Add(borrowerOrg.CarbonCredits, req.Amount)
		if err != nil {
			return err
		}
		borrowerOrg.Debt, err = safemath.Add(borrowerOrg.Debt, req.Amount)
		if err != nil {
			return err
		}
		borrowerOrg.TimesBorrowed, err = safemath.AddUint32(borrowerOrg.TimesBorrowed, 1)
		if err != nil {
			return err
		}
		borrowerOrg.TotalBorrowed, err = safemath.Add(borrowerOrg.TotalBorrowed, req.Amount)
		if err != nil {
			return err
		}
		req.Status = LendApproved

		if err := tx.PutOrganization(caller, lenderOrg); err != nil {
			return err
		}
		if err := tx.PutOrganization(req.Borrower, borrowerOrg); err != nil {
			return err
		}
		return tx.PutLendRequest(&req)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("lend request resolved",
		zap.Uint64("request_id", requestID),
		zap.String("response", normalized))
	s.audit.Record(ctx, "lend_tokens", caller, map[string]string{
		"request_id": strconv.FormatUint(requestID, 10),
		"lender":     caller,
		"borrower":   req.Borrower,
		"response":   normalized,
	})
	return &RespondToLendRequestResult{
		Method:    "lend_tokens",
		RequestID: requestID,
		Lender:    caller,
		Borrower:  req.Borrower,
		Amount:    req.Amount,
		Response:  normalized,
	}, nil
}

// RepayTokens moves amount from the caller (borrower) back to lender,
// reducing the caller's debt and growing their total_returned. Partial
// repayment is allowed; the amount must not exceed either the caller's
// credits or their outstanding debt.
func (s *Service) RepayTokens(ctx context.Context, caller, lender string, amount uint64) (*RepayTokensResult, error) {
	err := s.store.Update(func(tx *Tx) error {
		borrowerOrg, err := tx.Organization(caller)
		if err != nil {
			return err
		}
		lenderOrg, err := tx.Organization(lender)
		if err != nil {
			return err
		}
		if borrowerOrg.CarbonCredits < amount {
			return ErrNotEnoughCredits
		}
		if borrowerOrg.Debt < amount {
			return ErrNotEnoughCredits
		}
		borrowerOrg.CarbonCredits, err = safemath.Sub(borrowerOrg.CarbonCredits, amount)
		if err != nil {
			return err
		}
		borrowerOrg.Debt, err = safemath.Sub(borrowerOrg.Debt, amount)
		if err != nil {
			return err
		}
		borrowerOrg.TotalReturned, err = safemath.Add(borrowerOrg.TotalReturned, amount)
		if err != nil {
			return err
		}
		lenderOrg.CarbonCredits, err = safemath.Add(lenderOrg.CarbonCredits, amount)
		if err != nil {
			return err
		}
		if err := tx.PutOrganization(caller, borrowerOrg); err != nil {
			return err
		}
		return tx.PutOrganization(lender, lenderOrg)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "repay_tokens", caller, map[string]string{
		"borrower": caller,
		"lender":   lender,
		"amount":   strconv.FormatUint(amount, 10),
	})
	return &RepayTokensResult{Method: "repay_tokens", Borrower: caller, Lender: lender, Amount: amount}, nil
}

// VerifyEligibility recomputes the borrower's eligibility score from the
// current ledger state and stores a proof artifact keyed by (borrower,
// lender). This attestation path is independent of RequestTokens; the two
// are never cross-checked.
func (s *Service) VerifyEligibility(ctx context.Context, caller, borrower, lender string, amount uint64) (*VerifyEligibilityResult, error) {
	var (
		score    uint64
		proofHex string
	)
	err := s.store.Update(func(tx *Tx) error {
		borrowerOrg, err := tx.Organization(borrower)
		if err != nil {
			return err
		}
		lenderOrg, err := tx.Organization(lender)
		if err != nil {
			return err
		}
		inputs, err := newEligibilityInputs(borrowerOrg, lenderOrg)
		if err != nil {
			return err
		}
		score = inputs.score()
		if score == 0 {
			return ErrBorrowerNotEligible
		}
		proof := inputs.verificationProof(score)
		proofHex = hex.EncodeToString(proof)
		return tx.PutProof(borrower, lender, proof)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, "verify_eligibility", caller, map[string]string{
		"borrower":          borrower,
		"lender":            lender,
		"amount":            strconv.FormatUint(amount, 10),
		"eligibility_score": strconv.FormatUint(score, 10),
	})
	return &VerifyEligibilityResult{
		Method:           "verify_eligibility",
		Borrower:         borrower,
		Lender:           lender,
		Amount:           amount,
		EligibilityScore: score,
		ProofHex:         proofHex,
	}, nil
}
