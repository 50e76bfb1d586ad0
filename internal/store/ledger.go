package store

import (
	"fmt"
	"time"

	"banhngot/backend/internal/domain"
)

// ApplyMutations applies a mutation batch to a branch in place. Callers pass a
// working copy of the branch so a failed batch leaves the stored row intact.
// Return-kind changes may create a missing ledger entry; every other kind
// needs an existing entry and may not drive its volume negative.
func ApplyMutations(branch *domain.Branch, mutations []Mutation, at time.Time) error {
	for _, m := range mutations {
		if !m.Type.Valid() {
			return fmt.Errorf("change type %q: %w", m.Type, ErrInvalidOrder)
		}
		change := domain.InventoryChange{Delta: m.Delta, Type: m.Type, CreatedAt: at}

		switch m.Ledger {
		case LedgerMaterial:
			entry := branch.FindMaterial(m.MaterialID)
			if entry == nil {
				if !m.Type.IsReturn() || m.Delta <= 0 {
					return fmt.Errorf("material %s: %w", m.MaterialID, ErrMissingMaterial)
				}
				branch.Materials = append(branch.Materials, domain.MaterialStock{
					MaterialID: m.MaterialID,
					Volume:     m.Delta,
					History:    []domain.InventoryChange{change},
				})
				continue
			}
			next := entry.Volume + m.Delta
			if next < 0 && !m.Type.IsReturn() {
				return fmt.Errorf("material %s: %w", m.MaterialID, ErrInsufficientStock)
			}
			entry.Volume = next
			entry.History = append(entry.History, change)
		case LedgerFinishedGood:
			signature := domain.VariantSignature(m.SelectedVariants)
			entry := branch.FindFinishedGood(m.CakeID, signature)
			if entry == nil {
				if !m.Type.IsReturn() || m.Delta <= 0 {
					return fmt.Errorf("finished goods %s: %w", m.CakeID, ErrNotFound)
				}
				branch.FinishedGoods = append(branch.FinishedGoods, domain.FinishedGoodStock{
					CakeID:           m.CakeID,
					SelectedVariants: m.SelectedVariants,
					Volume:           m.Delta,
					History:          []domain.InventoryChange{change},
				})
				continue
			}
			next := entry.Volume + m.Delta
			if next < 0 && !m.Type.IsReturn() {
				return fmt.Errorf("finished goods %s: %w", m.CakeID, ErrInsufficientStock)
			}
			entry.Volume = next
			entry.History = append(entry.History, change)
		default:
			return fmt.Errorf("ledger %q: %w", m.Ledger, ErrInvalidOrder)
		}
	}
	return nil
}
