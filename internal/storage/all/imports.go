// Package all enables every built-in storage backend. Import it for side
// effects only:
//
//	import _ "evetl/internal/storage/all"
package all

import (
	_ "evetl/internal/storage/mssql"
	_ "evetl/internal/storage/postgres"
	_ "evetl/internal/storage/sqlite"
)
