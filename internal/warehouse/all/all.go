// Package all links every warehouse backend into the importing binary.
package all

import (
	_ "tabload/internal/warehouse/duckdb"
	_ "tabload/internal/warehouse/mssql"
	_ "tabload/internal/warehouse/postgres"
	_ "tabload/internal/warehouse/sqlite"
)
