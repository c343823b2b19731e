// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// BankAccountTable represents the 'bank.account' table
type BankAccountTable struct {
	Table     string
	ID        string
	UserID    string
	Number    string
	Currency  string
	Balance   string
	CreatedAt string
}

// BankAccount is the schema definition for bank.account
var BankAccount = BankAccountTable{
	Table:     "bank.account",
	ID:        "id",
	UserID:    "userid",
	Number:    "number",
	Currency:  "currency",
	Balance:   "balance",
	CreatedAt: "createdat",
}

// Columns returns all standard column names in scan order.
func (t BankAccountTable) Columns() []string {
	return []string{t.ID, t.UserID, t.Number, t.Currency, t.Balance, t.CreatedAt}
}

// SelectList returns Columns joined for a SELECT clause.
func (t BankAccountTable) SelectList() string {
	return columnList(t.Columns())
}
