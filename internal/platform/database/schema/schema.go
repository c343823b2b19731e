// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the PostgreSQL tables and columns used by the stores.
//
// Queries reference these descriptors instead of string literals so that a
// column rename is a compile-time change in one place.
package schema

import "strings"

// columnList renders columns as a comma separated SELECT list.
func columnList(columns []string) string {
	return strings.Join(columns, ", ")
}
