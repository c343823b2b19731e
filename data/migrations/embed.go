// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migrations bundles the PostgreSQL schema so the binary can migrate
// without a checkout of this directory.
package migrations

import "embed"

// Files holds every *.sql migration in golang-migrate naming.
//
//go:embed *.sql
var Files embed.FS
