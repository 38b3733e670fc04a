package categories

import "github.com/cleared-dev/reconcile/internal/model"

// DefaultCategories returns the category list for a profile.
func DefaultCategories(profile string) []model.Category {
	switch profile {
	case "household":
		return householdCategories()
	case "small_business":
		return smallBusinessCategories()
	default:
		return householdCategories()
	}
}

func householdCategories() []model.Category {
	return []model.Category{
		{Name: model.Uncategorized, Description: "Not yet categorized"},
		{Name: "salary", Direction: model.DirectionIncome, Description: "Wages and salary"},
		{Name: "refunds", Direction: model.DirectionIncome, Description: "Refunds and reimbursements"},
		{Name: "groceries", Direction: model.DirectionExpense, Description: "Food and household goods"},
		{Name: "housing", Direction: model.DirectionExpense, Description: "Rent, mortgage, utilities"},
		{Name: "transport", Direction: model.DirectionExpense, Description: "Fuel, tickets, parking"},
		{Name: "subscriptions", Direction: model.DirectionExpense, Description: "Streaming and software"},
		{Name: "transfers", Description: "Moves between own accounts"},
	}
}

func smallBusinessCategories() []model.Category {
	return []model.Category{
		{Name: model.Uncategorized, Description: "Not yet categorized"},
		{Name: "service_revenue", Direction: model.DirectionIncome},
		{Name: "product_revenue", Direction: model.DirectionIncome},
		{Name: "advertising", Direction: model.DirectionExpense, Description: "Advertising costs"},
		{Name: "software", Direction: model.DirectionExpense, Description: "Software subscriptions"},
		{Name: "office_supplies", Direction: model.DirectionExpense, Description: "Office supplies and expenses"},
		{Name: "professional_services", Direction: model.DirectionExpense, Description: "Legal, accounting, consulting"},
		{Name: "shipping", Direction: model.DirectionExpense, Description: "Postage and shipping costs"},
		{Name: "transfers", Description: "Moves between own accounts"},
	}
}
