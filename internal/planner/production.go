package planner

import (
	"context"

	"banhngot/backend/internal/domain"
)

// MergeOrderIntoPlan folds one order's lines into a plan's details, netting
// required production against the branch's finished-goods snapshot. Merging
// an order already listed on the plan is a no-op.
func MergeOrderIntoPlan(
	ctx context.Context,
	plan *domain.Plan,
	branch *domain.Branch,
	order *domain.Order,
	resolve ResolveFunc,
) error {
	for _, id := range plan.OrderIDs {
		if id == order.ID {
			return nil
		}
	}

	for _, item := range order.Items {
		perUnit, err := resolve(ctx, item.CakeID, item.SelectedVariants)
		if err != nil {
			return err
		}
		mergeDetail(plan, branch, item, perUnit)
	}

	plan.OrderIDs = append(plan.OrderIDs, order.ID)
	return nil
}

func mergeDetail(plan *domain.Plan, branch *domain.Branch, item domain.OrderItem, perUnit []domain.RecipeLine) {
	signature := item.Signature()

	var detail *domain.PlanDetail
	for i := range plan.Details {
		d := &plan.Details[i]
		if d.CakeID == item.CakeID && d.Signature() == signature {
			detail = d
			break
		}
	}

	if detail == nil {
		currentInventory := 0.0
		if entry := branch.FindFinishedGood(item.CakeID, signature); entry != nil {
			currentInventory = entry.Volume
		}
		planned := item.Quantity - currentInventory
		if planned < 0 {
			planned = 0
		}
		plan.Details = append(plan.Details, domain.PlanDetail{
			CakeID:            item.CakeID,
			SelectedVariants:  item.SelectedVariants,
			OrderCount:        1,
			OrderAmount:       item.Quantity,
			CurrentInventory:  currentInventory,
			PlannedProduction: planned,
			Materials:         scaleMaterials(perUnit, planned),
		})
		return
	}

	detail.OrderCount++
	detail.OrderAmount += item.Quantity
	planned := detail.OrderAmount - detail.CurrentInventory
	if planned < 0 {
		planned = 0
	}
	detail.PlannedProduction = planned
	// Material quantities are replaced, not accumulated: each merge re-scales
	// the per-unit recipe by the new planned production.
	detail.Materials = scaleMaterials(perUnit, planned)
}

func scaleMaterials(perUnit []domain.RecipeLine, planned float64) []domain.PlanMaterial {
	if planned <= 0 {
		return []domain.PlanMaterial{}
	}
	materials := make([]domain.PlanMaterial, 0, len(perUnit))
	for _, line := range perUnit {
		materials = append(materials, domain.PlanMaterial{
			MaterialID: line.MaterialID,
			Quantity:   line.Quantity * planned,
		})
	}
	return materials
}

// PlanMaterialTotals sums a plan's detail materials into one list, merged by
// material id, for the completion-time inventory draw.
func PlanMaterialTotals(plan *domain.Plan) []domain.PlanMaterial {
	totals := make(map[string]float64)
	order := make([]string, 0)
	for _, detail := range plan.Details {
		for _, m := range detail.Materials {
			if _, seen := totals[m.MaterialID]; !seen {
				order = append(order, m.MaterialID)
			}
			totals[m.MaterialID] += m.Quantity
		}
	}

	merged := make([]domain.PlanMaterial, 0, len(order))
	for _, materialID := range order {
		merged = append(merged, domain.PlanMaterial{MaterialID: materialID, Quantity: totals[materialID]})
	}
	return merged
}
