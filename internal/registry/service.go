package registry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/IronJam11/zk-carbon/internal/audit"
	"github.com/IronJam11/zk-carbon/pkg/safemath"
)

// Service implements the registry's command and query surface. The caller
// identity on every command is supplied by the host layer and trusted; no
// authentication happens here. All mutations of one command run inside a
// single store transaction, so they commit all-or-nothing.
type Service struct {
	store  *Store
	logger *zap.Logger
	audit  audit.Recorder

	// now is replaceable in tests for deterministic deadlines.
	now func() time.Time
}

func NewService(store *Store, logger *zap.Logger, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		store:  store,
		logger: logger,
		audit:  recorder,
		now:    time.Now,
	}
}

func (s *Service) nowSeconds() uint64 {
	return uint64(s.now().Unix())
}

// Instantiate writes the singleton config and zeroes both id counters. It
// may be called once; re-instantiating an existing registry is rejected so
// the owner and voting period can never change.
func (s *Service) Instantiate(ctx context.Context, caller string, votingPeriod uint64) (*Config, error) {
	cfg := &Config{
		Owner:              caller,
		VotingPeriod:       votingPeriod,
		TotalCarbonCredits: 0,
	}
	err := s.store.Update(func(tx *Tx) error {
		if tx.Instantiated() {
			return ErrAlreadyInstantiated
		}
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("registry instantiated",
		zap.String("owner", caller),
		zap.Uint64("voting_period", votingPeriod))
	s.audit.Record(ctx, "instantiate", caller, map[string]string{
		"owner":         caller,
		"voting_period": strconv.FormatUint(votingPeriod, 10),
	})
	return cfg, nil
}

// UpdateOrganizationName sets the display name on the caller's own account,
// creating the account with zero balances if it does not exist yet.
func (s *Service) UpdateOrganizationName(ctx context.Context, caller, name string) error {
	err := s.store.Update(func(tx *Tx) error {
		org, err := tx.Organization(caller)
		if err != nil {
			return err
		}
		org.Name = name
		return tx.PutOrganization(caller, org)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, "update_organization_name", caller, map[string]string{
		"organization": caller,
		"name":         name,
	})
	return nil
}

// AddOrganizationEmission parses the caller-supplied amount string and adds
// it to the caller's running emissions total. Parsing failure and overflow
// are hard failures, never silent saturation.
func (s *Service) AddOrganizationEmission(ctx context.Context, caller, amount string) error {
	parsed, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidNumericInput, amount)
	}
	err = s.store.Update(func(tx *Tx) error {
		org, err := tx.Organization(caller)
		if err != nil {
			return err
		}
		org.Emissions, err = safemath.Add(org.Emissions, parsed)
		if err != nil {
			return err
		}
		return tx.PutOrganization(caller, org)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, "add_organization_emission", caller, map[string]string{
		"organization":    caller,
		"emissions_added": amount,
	})
	return nil
}
