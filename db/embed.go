// Package db embeds the ledger schema.
package db

import _ "embed"

// Schema contains the idempotent DDL for the catalog, customers, sales,
// returns and identifier counters.
//
//go:embed migrations/001_schema.sql
var Schema string
