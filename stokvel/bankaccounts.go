package stokvel

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/stokvela/finance-engine/finance"
)

// =============================================================================
// BANK ACCOUNT SERVICE - Accounts and the primary-account pointer
// =============================================================================

type BankAccountService struct {
	*base
}

// Add registers an account. The first active account of a stokvel becomes
// primary, as does any account added with makePrimary.
func (s *BankAccountService) Add(ctx context.Context, b finance.BankAccount, makePrimary bool) (finance.BankAccount, error) {
	if b.ID == "" {
		b.ID = finance.BankAccountID(s.newID())
	}
	b.IsActive = true
	b.CreatedAt = s.now()
	if err := b.Validate(); err != nil {
		return finance.BankAccount{}, err
	}
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		sv, err := tx.GetStokvel(ctx, b.StokvelID)
		if err != nil {
			return err
		}
		existing, err := tx.ListBankAccounts(ctx, b.StokvelID)
		if err != nil {
			return err
		}
		for _, o := range existing {
			if strings.EqualFold(o.BankName, b.BankName) && o.AccountNumber == b.AccountNumber {
				return &finance.ValidationError{Field: "account_number", Message: "is already registered for this stokvel"}
			}
		}
		if err := tx.CreateBankAccount(ctx, b); err != nil {
			return err
		}
		if makePrimary || sv.PrimaryBankAccountID == nil {
			sv.PrimaryBankAccountID = &b.ID
			return tx.UpdateStokvel(ctx, sv)
		}
		return nil
	})
	if err != nil {
		return finance.BankAccount{}, err
	}
	return b, nil
}

// SetPrimary moves the primary pointer to an active account.
func (s *BankAccountService) SetPrimary(ctx context.Context, id finance.BankAccountID) error {
	return s.store.WithTx(ctx, func(tx finance.Store) error {
		b, err := tx.GetBankAccount(ctx, id)
		if err != nil {
			return err
		}
		if !b.IsActive {
			return &finance.ValidationError{Field: "bank_account_id", Message: "inactive account cannot be primary"}
		}
		sv, err := tx.GetStokvel(ctx, b.StokvelID)
		if err != nil {
			return err
		}
		sv.PrimaryBankAccountID = &b.ID
		return tx.UpdateStokvel(ctx, sv)
	})
}

// Deactivate retires an account. If it was primary, the oldest remaining
// active account takes over, or the stokvel is left without one.
func (s *BankAccountService) Deactivate(ctx context.Context, id finance.BankAccountID) (finance.BankAccount, error) {
	var out finance.BankAccount
	err := s.store.WithTx(ctx, func(tx finance.Store) error {
		b, err := tx.GetBankAccount(ctx, id)
		if err != nil {
			return err
		}
		b.IsActive = false
		if err := tx.UpdateBankAccount(ctx, b); err != nil {
			return err
		}
		out = b
		sv, err := tx.GetStokvel(ctx, b.StokvelID)
		if err != nil {
			return err
		}
		if sv.PrimaryBankAccountID == nil || *sv.PrimaryBankAccountID != b.ID {
			return nil
		}
		accounts, err := tx.ListBankAccounts(ctx, b.StokvelID)
		if err != nil {
			return err
		}
		sv.PrimaryBankAccountID = nil
		for _, o := range accounts {
			if o.IsActive && o.ID != b.ID {
				next := o.ID
				sv.PrimaryBankAccountID = &next
				break
			}
		}
		return tx.UpdateStokvel(ctx, sv)
	})
	if err != nil {
		return finance.BankAccount{}, err
	}
	s.log.Info("bank account deactivated", zap.String("bank_account_id", string(id)))
	return out, nil
}

func (s *BankAccountService) List(ctx context.Context, stokvelID finance.StokvelID) ([]finance.BankAccount, error) {
	return s.store.ListBankAccounts(ctx, stokvelID)
}

func (s *BankAccountService) Get(ctx context.Context, id finance.BankAccountID) (finance.BankAccount, error) {
	return s.store.GetBankAccount(ctx, id)
}
