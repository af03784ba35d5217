package registry

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	configBucket        = []byte("config")
	claimsBucket        = []byte("claims")
	votesBucket         = []byte("votes")
	organizationsBucket = []byte("organizations")
	lendRequestsBucket  = []byte("lend_requests")
	proofsBucket        = []byte("proofs")
	countersBucket      = []byte("counters")

	configKey         = []byte("config")
	claimCounterKey   = []byte("claim_counter")
	lendCounterKey    = []byte("lend_request_counter")
	proofKeySeparator = []byte{0}
)

// Store is the registry's persistence layer: a single bbolt database with
// one bucket per collection. Every command runs inside one write transaction
// so multi-key mutations commit all-or-nothing, and bbolt's single-writer
// model serializes calls.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the registry database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open registry store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			configBucket, claimsBucket, votesBucket,
			organizationsBucket, lendRequestsBucket, proofsBucket, countersBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init registry buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Update runs fn in a single write transaction. If fn returns an error no
// write is persisted.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bbolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// Tx exposes typed access to the registry collections within one bbolt
// transaction.
type Tx struct {
	tx *bbolt.Tx
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func (t *Tx) Instantiated() bool {
	return t.tx.Bucket(configBucket).Get(configKey) != nil
}

func (t *Tx) Config() (*Config, error) {
	raw := t.tx.Bucket(configBucket).Get(configKey)
	if raw == nil {
		return nil, ErrNotInstantiated
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (t *Tx) PutConfig(cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return t.tx.Bucket(configBucket).Put(configKey, data)
}

// NextClaimID allocates the next claim id: the current counter value is the
// new id, and the incremented counter is persisted in the same transaction.
// Ids are never reused.
func (t *Tx) NextClaimID() (uint64, error) {
	return t.nextID(claimCounterKey)
}

// NextLendRequestID allocates the next lend request id.
func (t *Tx) NextLendRequestID() (uint64, error) {
	return t.nextID(lendCounterKey)
}

func (t *Tx) nextID(key []byte) (uint64, error) {
	bucket := t.tx.Bucket(countersBucket)
	var current uint64
	if raw := bucket.Get(key); raw != nil {
		current = btoi(raw)
	}
	if err := bucket.Put(key, itob(current+1)); err != nil {
		return 0, err
	}
	return current, nil
}

func (t *Tx) Claim(id uint64) (*Claim, error) {
	raw := t.tx.Bucket(claimsBucket).Get(itob(id))
	if raw == nil {
		return nil, ErrClaimNotFound
	}
	var claim Claim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

func (t *Tx) PutClaim(claim *Claim) error {
	data, err := json.Marshal(claim)
	if err != nil {
		return err
	}
	return t.tx.Bucket(claimsBucket).Put(itob(claim.ID), data)
}

// ClaimsAscending iterates claims in ascending id order, starting strictly
// after startAfter when it is non-nil. fn returning stop=true ends the scan.
func (t *Tx) ClaimsAscending(startAfter *uint64, fn func(claim *Claim) (stop bool, err error)) error {
	cursor := t.tx.Bucket(claimsBucket).Cursor()
	k, v := seekAfter(cursor, startAfter)
	for ; k != nil; k, v = cursor.Next() {
		var claim Claim
		if err := json.Unmarshal(v, &claim); err != nil {
			return err
		}
		stop, err := fn(&claim)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func seekAfter(cursor *bbolt.Cursor, startAfter *uint64) ([]byte, []byte) {
	if startAfter == nil {
		return cursor.First()
	}
	k, v := cursor.Seek(itob(*startAfter))
	if k != nil && bytes.Equal(k, itob(*startAfter)) {
		k, v = cursor.Next()
	}
	return k, v
}

// HasVote reports whether voter already voted on the claim. The presence of
// the vote record is the single-vote enforcement mechanism.
func (t *Tx) HasVote(claimID uint64, voter string) bool {
	bucket := t.tx.Bucket(votesBucket).Bucket(itob(claimID))
	return bucket != nil && bucket.Get([]byte(voter)) != nil
}

func (t *Tx) PutVote(claimID uint64, voter string, option VoteOption) error {
	bucket, err := t.tx.Bucket(votesBucket).CreateBucketIfNotExists(itob(claimID))
	if err != nil {
		return err
	}
	return bucket.Put([]byte(voter), []byte(option))
}

// VotesAscending iterates the votes on a claim in ascending voter key order.
func (t *Tx) VotesAscending(claimID uint64, fn func(voter string, option VoteOption) error) error {
	bucket := t.tx.Bucket(votesBucket).Bucket(itob(claimID))
	if bucket == nil {
		return nil
	}
	return bucket.ForEach(func(k, v []byte) error {
		return fn(string(k), VoteOption(v))
	})
}

// Organization loads the account for addr, returning all-zero defaults when
// it has never been written.
func (t *Tx) Organization(addr string) (*Organization, error) {
	raw := t.tx.Bucket(organizationsBucket).Get([]byte(addr))
	if raw == nil {
		return &Organization{}, nil
	}
	var org Organization
	if err := json.Unmarshal(raw, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (t *Tx) PutOrganization(addr string, org *Organization) error {
	data, err := json.Marshal(org)
	if err != nil {
		return err
	}
	return t.tx.Bucket(organizationsBucket).Put([]byte(addr), data)
}

// OrganizationsAscending iterates persisted organizations in ascending
// address order, starting strictly after startAfter when it is non-empty.
func (t *Tx) OrganizationsAscending(startAfter string, fn func(addr string, org *Organization) (stop bool, err error)) error {
	cursor := t.tx.Bucket(organizationsBucket).Cursor()
	var k, v []byte
	if startAfter == "" {
		k, v = cursor.First()
	} else {
		k, v = cursor.Seek([]byte(startAfter))
		if k != nil && bytes.Equal(k, []byte(startAfter)) {
			k, v = cursor.Next()
		}
	}
	for ; k != nil; k, v = cursor.Next() {
		var org Organization
		if err := json.Unmarshal(v, &org); err != nil {
			return err
		}
		stop, err := fn(string(k), &org)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (t *Tx) LendRequest(id uint64) (*LendRequest, error) {
	raw := t.tx.Bucket(lendRequestsBucket).Get(itob(id))
	if raw == nil {
		return nil, ErrRequestNotFound
	}
	var req LendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (t *Tx) PutLendRequest(req *LendRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return t.tx.Bucket(lendRequestsBucket).Put(itob(req.ID), data)
}

// LendRequestsAscending iterates lend requests in ascending id order,
// starting strictly after startAfter when it is non-nil.
func (t *Tx) LendRequestsAscending(startAfter *uint64, fn func(req *LendRequest) (stop bool, err error)) error {
	cursor := t.tx.Bucket(lendRequestsBucket).Cursor()
	k, v := seekAfter(cursor, startAfter)
	for ; k != nil; k, v = cursor.Next() {
		var req LendRequest
		if err := json.Unmarshal(v, &req); err != nil {
			return err
		}
		stop, err := fn(&req)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func proofKey(borrower, lender string) []byte {
	key := make([]byte, 0, len(borrower)+1+len(lender))
	key = append(key, borrower...)
	key = append(key, proofKeySeparator...)
	key = append(key, lender...)
	return key
}

func (t *Tx) PutProof(borrower, lender string, proof []byte) error {
	return t.tx.Bucket(proofsBucket).Put(proofKey(borrower, lender), proof)
}

// Proof returns the stored eligibility proof for the (borrower, lender)
// pair, or nil if none was recorded.
func (t *Tx) Proof(borrower, lender string) []byte {
	raw := t.tx.Bucket(proofsBucket).Get(proofKey(borrower, lender))
	if raw == nil {
		return nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
