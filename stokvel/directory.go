package stokvel

import (
	"context"

	"github.com/stokvela/finance-engine/finance"
)

// Directory covers stokvels, the member roster and outbox reads.
type Directory struct {
	*base
}

// CreateStokvel stores a new active stokvel. A zero due day gets
// defaultDueDay.
func (d *Directory) CreateStokvel(ctx context.Context, name string, dueDay, defaultDueDay int) (finance.Stokvel, error) {
	if dueDay == 0 {
		dueDay = defaultDueDay
	}
	sv := finance.Stokvel{
		ID:                 finance.StokvelID(d.newID()),
		Name:               name,
		ContributionDueDay: dueDay,
		IsActive:           true,
		CreatedAt:          d.now(),
	}
	if err := sv.Validate(); err != nil {
		return finance.Stokvel{}, err
	}
	if err := d.store.CreateStokvel(ctx, sv); err != nil {
		return finance.Stokvel{}, err
	}
	return sv, nil
}

func (d *Directory) GetStokvel(ctx context.Context, id finance.StokvelID) (finance.Stokvel, error) {
	return d.store.GetStokvel(ctx, id)
}

func (d *Directory) ListStokvels(ctx context.Context) ([]finance.Stokvel, error) {
	return d.store.ListStokvels(ctx)
}

// SaveMember upserts a roster entry synced from membership management.
func (d *Directory) SaveMember(ctx context.Context, m finance.Member) (finance.Member, error) {
	if m.ID == "" {
		return finance.Member{}, &finance.ValidationError{Field: "id", Message: "is required"}
	}
	if m.Status == "" {
		m.Status = finance.MemberActive
	}
	if !m.Status.Valid() {
		return finance.Member{}, &finance.ValidationError{Field: "status", Message: "is not a known member status"}
	}
	err := d.store.WithTx(ctx, func(tx finance.Store) error {
		if _, err := tx.GetStokvel(ctx, m.StokvelID); err != nil {
			return err
		}
		return tx.SaveMember(ctx, m)
	})
	if err != nil {
		return finance.Member{}, err
	}
	return m, nil
}

func (d *Directory) ListMembers(ctx context.Context, stokvelID finance.StokvelID) ([]finance.Member, error) {
	return d.store.ListMembers(ctx, stokvelID)
}

// Events returns queued notifications, newest first.
func (d *Directory) Events(ctx context.Context, stokvelID finance.StokvelID, limit int) ([]finance.NotificationEvent, error) {
	return d.store.ListEvents(ctx, stokvelID, limit)
}
