package service

import (
	"context"
	"strconv"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/cache"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/samber/lo"
)

func orderKey(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

func productKey(productID int64) string {
	return strconv.FormatInt(productID, 10)
}

// evictProductsAfterCommit drops cached product pages once tx commits.
func evictProductsAfterCommit(tx *db.Tx, evictor cache.Evictor, productIDs ...int64) {
	if len(productIDs) == 0 {
		return
	}

	keys := lo.Map(lo.Uniq(productIDs), func(id int64, _ int) string {
		return cache.ProductDetailKey(id)
	})

	tx.AfterCommit("cache.evict products", func(ctx context.Context) error {
		return evictor.Evict(ctx, keys...)
	})
}
