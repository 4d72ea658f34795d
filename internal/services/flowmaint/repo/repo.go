// Package repo provides postgres access for flow partition maintenance
package repo

import (
	"context"

	"flowkeeper/internal/modkit/repokit"
	pstr "flowkeeper/internal/platform/strings"
	"flowkeeper/internal/platform/store"
	"flowkeeper/internal/services/flowmaint/domain"

	"github.com/jackc/pgx/v5"
)

type (
	// PG is a Postgres binder for domain.StorageRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

// ident quotes a relation name taken from the catalog or the shard cache
func ident(name string) string { return pgx.Identifier{name}.Sanitize() }

// ListTables reads tables and partitioned parents in the current schema.
// The storage engine is the table access method, empty for partitioned parents
func (r *queries) ListTables(ctx context.Context, prefix string) ([]domain.TableInfo, error) {
	const sqlq = `
		SELECT c.relname::text, COALESCE(am.amname::text, '')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_catalog.pg_am am ON am.oid = c.relam
		WHERE n.nspname = current_schema()
		  AND c.relkind IN ('r', 'p')
		  AND c.relname LIKE $1
		ORDER BY c.relname DESC
	`
	return store.Many(ctx, r.q, func(row store.Row) (domain.TableInfo, error) {
		var t domain.TableInfo
		err := row.Scan(&t.Name, &t.Engine)
		return t, err
	}, sqlq, pstr.PrefixPattern(prefix))
}

// TableExists reports whether name is a table in the current schema
func (r *queries) TableExists(ctx context.Context, name string) (bool, error) {
	const sqlq = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`
	return store.Scalar[bool](ctx, r.q, sqlq, name)
}

// DropTable drops name; a table already gone is not an error
func (r *queries) DropTable(ctx context.Context, name string) error {
	_, err := r.q.Exec(ctx, `DROP TABLE IF EXISTS `+ident(name))
	return err
}

// SetEngine rewrites name under the given table access method
func (r *queries) SetEngine(ctx context.Context, name, engine string) error {
	_, err := r.q.Exec(ctx, `ALTER TABLE `+ident(name)+` SET ACCESS METHOD `+ident(engine))
	return err
}
