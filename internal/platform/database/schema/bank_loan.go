// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// BankLoanTable represents the 'bank.loan' table
type BankLoanTable struct {
	Table      string
	ID         string
	UserID     string
	Amount     string
	Currency   string
	TermMonths string
	Purpose    string
	Status     string
	CreatedAt  string
	DecidedAt  string
}

// BankLoan is the schema definition for bank.loan
var BankLoan = BankLoanTable{
	Table:      "bank.loan",
	ID:         "id",
	UserID:     "userid",
	Amount:     "amount",
	Currency:   "currency",
	TermMonths: "termmonths",
	Purpose:    "purpose",
	Status:     "status",
	CreatedAt:  "createdat",
	DecidedAt:  "decidedat",
}

// Columns returns all standard column names in scan order.
func (t BankLoanTable) Columns() []string {
	return []string{t.ID, t.UserID, t.Amount, t.Currency, t.TermMonths, t.Purpose, t.Status, t.CreatedAt, t.DecidedAt}
}

// SelectList returns Columns joined for a SELECT clause.
func (t BankLoanTable) SelectList() string {
	return columnList(t.Columns())
}
