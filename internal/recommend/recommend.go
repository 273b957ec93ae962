// Package recommend ranks products a customer is likely to want next, given
// the products they just bought. The ranking feeds reward coupon scoping
// after checkout; an empty result means no signal, never an error.
package recommend

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Recommender returns up to topN product SKUs ranked by relevance to the
// given purchase. May return fewer, or none.
type Recommender interface {
	Recommend(ctx context.Context, skus []string, topN int) ([]string, error)
}

// CoPurchase recommends by co-occurrence: orders that share a SKU with the
// purchase vote for the other products they contain.
type CoPurchase struct {
	DB *sql.DB
}

func (r *CoPurchase) Recommend(ctx context.Context, skus []string, topN int) ([]string, error) {
	if len(skus) == 0 || topN <= 0 {
		return nil, nil
	}

	query := `
		WITH peer_orders AS (
			SELECT DISTINCT order_id
			FROM order_items
			WHERE sku = ANY($1)
		)
		SELECT oi.sku, COUNT(*) AS hits
		FROM order_items oi
		JOIN peer_orders po ON po.order_id = oi.order_id
		WHERE NOT (oi.sku = ANY($1))
		GROUP BY oi.sku
		ORDER BY hits DESC, oi.sku
		LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, pq.Array(skus), topN)
	if err != nil {
		return nil, fmt.Errorf("co-purchase recommendation: %w", err)
	}
	defer rows.Close()

	var ranked []string
	for rows.Next() {
		var sku string
		var hits int
		if err := rows.Scan(&sku, &hits); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		ranked = append(ranked, sku)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ranked, nil
}

// None is a Recommender with no signal, for tests and degraded startup.
type None struct{}

func (None) Recommend(context.Context, []string, int) ([]string, error) {
	return nil, nil
}
