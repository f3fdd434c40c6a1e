package tests

import (
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/cache"
	generalDomain "github.com/KBroJ/LoopPak-BE-sub001/pkg/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"github.com/redis/go-redis/v9"
)

func (s *IntegrationTestSuite) cached(productID int64) bool {
	_, err := s.Redis.Get(s.Ctx, cache.ProductDetailKey(productID)).Result()
	if err == redis.Nil {
		return false
	}
	s.Require().NoError(err)

	return true
}

func (s *IntegrationTestSuite) TestGetDetail_CacheAside() {
	productID := s.seedProduct(1_000, 5)
	s.False(s.cached(productID))

	detail, err := s.ProductService.GetDetail(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal(int64(5), detail.Stock)
	s.True(s.cached(productID))

	_, err = s.DbPool.Exec(s.Ctx, `UPDATE products SET stock = 1 WHERE id = $1`, productID)
	s.Require().NoError(err)

	detail, err = s.ProductService.GetDetail(s.Ctx, productID)
	s.Require().NoError(err)
	s.Equal(int64(5), detail.Stock, "served from cache")

	_, err = s.ProductService.GetDetail(s.Ctx, 999)
	s.Require().ErrorIs(err, repository.ErrProductNotFound)
}

func (s *IntegrationTestSuite) TestRestock_PublishesAndEvicts() {
	productID := s.seedProduct(1_000, 5)

	_, err := s.ProductService.GetDetail(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().True(s.cached(productID))

	change, err := s.ProductService.Restock(s.Ctx, productID, 10)
	s.Require().NoError(err)
	s.Equal(int64(5), change.PreviousStock)
	s.Equal(int64(15), change.CurrentStock)
	s.False(s.cached(productID))

	increased := s.Publisher.OfType(generalDomain.TypeStockIncreased)
	s.Require().Len(increased, 1)
	s.Equal(generalDomain.StockReasonRestock, increased[0].Event.(generalDomain.StockIncreasedEvent).Reason)

	_, err = s.ProductService.Restock(s.Ctx, productID, 0)
	s.Require().ErrorIs(err, domain.ErrInvalidQuantity)
}

func (s *IntegrationTestSuite) TestLike_PublishesOnlyOnChange() {
	userID := s.seedUser(0)
	productID := s.seedProduct(1_000, 5)

	changed, err := s.LikeService.Like(s.Ctx, userID, productID)
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.LikeService.Like(s.Ctx, userID, productID)
	s.Require().NoError(err)
	s.False(changed)

	s.Len(s.Publisher.OfType(generalDomain.TypeLikeAdded), 1)

	s.Equal(1, s.countRows("likes"))

	_, err = s.ProductService.GetDetail(s.Ctx, productID)
	s.Require().NoError(err)
	s.Require().True(s.cached(productID))

	changed, err = s.LikeService.Unlike(s.Ctx, userID, productID)
	s.Require().NoError(err)
	s.True(changed)
	s.False(s.cached(productID))
	s.Zero(s.countRows("likes"))

	changed, err = s.LikeService.Unlike(s.Ctx, userID, productID)
	s.Require().NoError(err)
	s.False(changed)

	removed := s.Publisher.OfType(generalDomain.TypeLikeRemoved)
	s.Require().Len(removed, 1)
	s.Equal(productID, removed[0].Event.(generalDomain.LikeRemovedEvent).TargetID)
	s.Equal(topics.CatalogTopic, removed[0].Topic)
}

func (s *IntegrationTestSuite) TestLike_UnknownProduct() {
	userID := s.seedUser(0)

	_, err := s.LikeService.Like(s.Ctx, userID, 999)
	s.Require().ErrorIs(err, repository.ErrProductNotFound)
	s.Zero(s.Publisher.Len())
}

func (s *IntegrationTestSuite) TestRecordView_Publishes() {
	productID := s.seedProduct(1_000, 5)

	s.ProductService.RecordView(s.Ctx, 7, productID)

	viewed := s.Publisher.OfType(generalDomain.TypeProductViewed)
	s.Require().Len(viewed, 1)
	s.Equal(productID, viewed[0].Event.(generalDomain.ProductViewedEvent).ProductID)
}

func (s *IntegrationTestSuite) TestCharge_RejectsNonPositive() {
	userID := s.seedUser(0)

	_, err := s.PointService.Charge(s.Ctx, userID, 0)
	s.Require().ErrorIs(err, domain.ErrInvalidAmount)

	point, err := s.PointService.Charge(s.Ctx, userID, 1_000)
	s.Require().NoError(err)
	s.Equal(int64(1_000), point.Balance)
}
