// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// BankTransactionTable represents the 'bank.transaction' table
type BankTransactionTable struct {
	Table         string
	ID            string
	FromAccountID string
	ToAccountID   string
	Amount        string
	Currency      string
	Description   string
	CreatedAt     string
}

// BankTransaction is the schema definition for bank.transaction
var BankTransaction = BankTransactionTable{
	Table:         "bank.transaction",
	ID:            "id",
	FromAccountID: "fromaccountid",
	ToAccountID:   "toaccountid",
	Amount:        "amount",
	Currency:      "currency",
	Description:   "description",
	CreatedAt:     "createdat",
}

// Columns returns all standard column names in scan order.
func (t BankTransactionTable) Columns() []string {
	return []string{t.ID, t.FromAccountID, t.ToAccountID, t.Amount, t.Currency, t.Description, t.CreatedAt}
}

// SelectList returns Columns joined for a SELECT clause.
func (t BankTransactionTable) SelectList() string {
	return columnList(t.Columns())
}
