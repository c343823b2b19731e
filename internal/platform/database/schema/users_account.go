// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table        string
	ID           string
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	DateOfBirth  string
	Role         string
	IsActivated  string
	CreatedAt    string
	UpdatedAt    string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:        "users.account",
	ID:           "id",
	Username:     "username",
	Email:        "email",
	PasswordHash: "passwordhash",
	FullName:     "fullname",
	DateOfBirth:  "dateofbirth",
	Role:         "role",
	IsActivated:  "isactivated",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}

// Columns returns all standard column names in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Email, t.PasswordHash, t.FullName, t.DateOfBirth,
		t.Role, t.IsActivated, t.CreatedAt, t.UpdatedAt,
	}
}

// SelectList returns Columns joined for a SELECT clause.
func (t UserAccountTable) SelectList() string {
	return columnList(t.Columns())
}
