package sqlinline

import _ "embed"

// Schema holds the DDL applied by cmd/migrate.
//
//go:embed schema.sql
var Schema string
