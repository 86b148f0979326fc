package matching

import (
	"context"
	"database/sql"
	"fmt"

	"readiness-workers/internal/common/database"
)

const matchesQuery = `SELECT * FROM startup_investor_matches WHERE org_id = $1 ORDER BY fit_score_0_to_100 DESC`

// SQLMatchReader reads match rows through one database role. The service
// builds two of these: the service role and the caller-scoped role.
type SQLMatchReader struct {
	db   *sql.DB
	role string
}

func NewSQLMatchReader(db *sql.DB, role string) *SQLMatchReader {
	return &SQLMatchReader{db: db, role: role}
}

func (r *SQLMatchReader) ReadMatches(ctx context.Context, orgID string) ([]map[string]interface{}, error) {
	rows, err := database.QueryMaps(ctx, r.db, matchesQuery, orgID)
	if err != nil {
		return nil, fmt.Errorf("read matches as %s: %w", r.role, err)
	}
	return rows, nil
}
