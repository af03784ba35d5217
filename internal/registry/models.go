package registry

// ClaimStatus is the lifecycle state of a claim. A claim is created Active
// and transitions exactly once to Approved or Rejected at finalization.
type ClaimStatus string

const (
	ClaimActive   ClaimStatus = "active"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// LendStatus is the lifecycle state of a lend request.
type LendStatus string

const (
	LendActive   LendStatus = "active"
	LendApproved LendStatus = "approved"
	LendRejected LendStatus = "rejected"
)

// VoteOption is a voter's choice on a claim.
type VoteOption string

const (
	VoteYes VoteOption = "yes"
	VoteNo  VoteOption = "no"
)

// Config is the singleton registry configuration, written once at
// instantiation. TotalCarbonCredits is the running total of credits minted
// across all approved claims.
type Config struct {
	Owner              string `json:"owner"`
	VotingPeriod       uint64 `json:"voting_period"` // seconds
	TotalCarbonCredits uint64 `json:"total_carbon_credits"`
}

// Claim is a geolocated emissions-reduction assertion submitted by an
// organization. Coordinate lists and the time window are caller-supplied and
// not validated here.
type Claim struct {
	ID             uint64      `json:"id"`
	Organization   string      `json:"organization"`
	Longitudes     []string    `json:"longitudes"`
	Latitudes      []string    `json:"latitudes"`
	TimeStarted    uint64      `json:"time_started"`
	TimeEnded      uint64      `json:"time_ended"`
	DemandedTokens uint64      `json:"demanded_tokens"`
	IpfsHashes     []string    `json:"ipfs_hashes"`
	Status         ClaimStatus `json:"status"`
	VotingEndTime  uint64      `json:"voting_end_time"`
	YesVotes       uint64      `json:"yes_votes"`
	NoVotes        uint64      `json:"no_votes"`
}

// Organization is the per-address ledger account, created lazily with
// all-zero defaults on first reference.
type Organization struct {
	ReputationScore uint64 `json:"reputation_score"`
	CarbonCredits   uint64 `json:"carbon_credits"`
	Debt            uint64 `json:"debt"`
	TimesBorrowed   uint32 `json:"times_borrowed"`
	TotalBorrowed   uint64 `json:"total_borrowed"`
	TotalReturned   uint64 `json:"total_returned"`
	Name            string `json:"name"`
	Emissions       uint64 `json:"emissions"`
}

// LendRequest is a proposed credit transfer from lender to borrower. The
// eligibility score and proof are computed from the borrower's ledger
// snapshot at request time.
type LendRequest struct {
	ID               uint64     `json:"id"`
	Borrower         string     `json:"borrower"`
	Lender           string     `json:"lender"`
	Amount           uint64     `json:"amount"`
	EligibilityScore uint64     `json:"eligibility_score"`
	ProofData        string     `json:"proof_data"`
	Status           LendStatus `json:"status"`
	Time             uint64     `json:"time"`
}

// ClaimView is a claim as exposed by queries. Vote tallies read as zero
// until the voting window has closed.
type ClaimView struct {
	ID             uint64      `json:"id"`
	Organization   string      `json:"organization"`
	Longitudes     []string    `json:"longitudes"`
	Latitudes      []string    `json:"latitudes"`
	TimeStarted    uint64      `json:"time_started"`
	TimeEnded      uint64      `json:"time_ended"`
	DemandedTokens uint64      `json:"demanded_tokens"`
	IpfsHashes     []string    `json:"ipfs_hashes"`
	Status         ClaimStatus `json:"status"`
	VotingEndTime  uint64      `json:"voting_end_time"`
	YesVotes       uint64      `json:"yes_votes"`
	NoVotes        uint64      `json:"no_votes"`
}

// OrganizationView is an organization as exposed by queries.
type OrganizationView struct {
	Address         string `json:"address"`
	ReputationScore uint64 `json:"reputation_score"`
	CarbonCredits   uint64 `json:"carbon_credits"`
	Debt            uint64 `json:"debt"`
	TimesBorrowed   uint32 `json:"times_borrowed"`
	TotalBorrowed   uint64 `json:"total_borrowed"`
	TotalReturned   uint64 `json:"total_returned"`
	Name            string `json:"name"`
	Emissions       uint64 `json:"emissions"`
}

// OrganizationListItem is the compact listing entry for GetAllOrganizations.
type OrganizationListItem struct {
	Address         string `json:"address"`
	Name            string `json:"name"`
	ReputationScore uint64 `json:"reputation_score"`
	CarbonCredits   uint64 `json:"carbon_credits"`
}

// LendRequestView is a lend request annotated with the querying user's role.
type LendRequestView struct {
	ID               uint64     `json:"id"`
	Borrower         string     `json:"borrower"`
	Lender           string     `json:"lender"`
	Status           LendStatus `json:"status"`
	EligibilityScore uint64     `json:"eligibility_score"`
	ProofData        string     `json:"proof_data"`
	Time             uint64     `json:"time"`
	Amount           uint64     `json:"amount"`
	Role             string     `json:"role"` // "borrower" or "lender"
}
