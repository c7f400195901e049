package migrations

import "embed"

// Files holds the dashboard schema migrations, applied in lexical order.
// 0002 seeds the built-in payment gateway catalog.
//
//go:embed *.sql
var Files embed.FS
