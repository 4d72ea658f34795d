package repo

import (
	"context"

	"flowkeeper/internal/platform/store"
	"flowkeeper/internal/services/flowmaint/domain"
)

// ListShardCache returns every cached parallel query shard
func (r *queries) ListShardCache(ctx context.Context) ([]domain.ShardCacheEntry, error) {
	const sqlq = `
		SELECT md5sum, map_table, map_partition
		FROM parallel_database_query_shard_cache
	`
	return store.Many(ctx, r.q, func(row store.Row) (domain.ShardCacheEntry, error) {
		var e domain.ShardCacheEntry
		err := row.Scan(&e.Checksum, &e.MappedTable, &e.MappedPartition)
		return e, err
	}, sqlq)
}

// DeleteShardCache removes one entry by its full key
func (r *queries) DeleteShardCache(ctx context.Context, e domain.ShardCacheEntry) (int64, error) {
	return store.Affected(ctx, r.q, `
		DELETE FROM parallel_database_query_shard_cache
		WHERE md5sum = $1 AND map_table = $2 AND map_partition = $3
	`, e.Checksum, e.MappedTable, e.MappedPartition)
}
