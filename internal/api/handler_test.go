package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketplace-service/internal/models"
	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubReviewStore backs the review service with a fixed review set; only the
// methods the routed handlers reach are meaningful.
type stubReviewStore struct {
	reviews map[int64]*models.Review
}

var _ service.ReviewStore = (*stubReviewStore)(nil)

func (s *stubReviewStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	return &models.Product{ID: id, IsActive: true}, nil
}

func (s *stubReviewStore) GetReviewByID(ctx context.Context, reviewID int64, active bool) (*models.Review, error) {
	review, ok := s.reviews[reviewID]
	if !ok || review.IsActive != active {
		return nil, nil
	}
	out := *review
	return &out, nil
}

func (s *stubReviewStore) GetActiveReviewByBuyer(ctx context.Context, buyerID, productID int64) (*models.Review, error) {
	return nil, nil
}

func (s *stubReviewStore) InsertReview(ctx context.Context, review *models.Review) error {
	review.ID = int64(len(s.reviews) + 1)
	review.IsActive = true
	s.reviews[review.ID] = review
	return nil
}

func (s *stubReviewStore) UpdateReview(ctx context.Context, reviewID int64, grade int, comment string) error {
	s.reviews[reviewID].Grade = grade
	s.reviews[reviewID].Comment = comment
	return nil
}

func (s *stubReviewStore) SetReviewActive(ctx context.Context, reviewID int64, active bool) error {
	s.reviews[reviewID].IsActive = active
	return nil
}

func (s *stubReviewStore) ActiveRatingAverage(ctx context.Context, productID int64) (float64, error) {
	return 0, nil
}

func (s *stubReviewStore) UpdateProductRating(ctx context.Context, productID int64, rating float64) error {
	return nil
}

func newReviewRouter(reviews map[int64]*models.Review) (*gin.Engine, *stubReviewStore) {
	gin.SetMode(gin.TestMode)

	store := &stubReviewStore{reviews: reviews}
	handler := NewHandler(nil, service.NewReviewService(store, nil))

	router := gin.New()
	handler.SetupRoutes(router)
	return router, store
}

func doJSON(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestActivateReviewRequiresAdminRole(t *testing.T) {
	router, store := newReviewRouter(map[int64]*models.Review{
		1: {ID: 1, BuyerID: 7, ProductID: 3, Grade: 4, IsActive: false},
	})

	rec := doJSON(router, http.MethodPut, "/api/v1/reviews/1/activate", "", map[string]string{
		"X-Buyer-ID": "8",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, store.reviews[1].IsActive)

	rec = doJSON(router, http.MethodPut, "/api/v1/reviews/1/activate", "", map[string]string{
		"X-Buyer-ID":  "8",
		"X-User-Role": "buyer",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, store.reviews[1].IsActive)
}

func TestActivateReviewAsAdmin(t *testing.T) {
	router, store := newReviewRouter(map[int64]*models.Review{
		1: {ID: 1, BuyerID: 7, ProductID: 3, Grade: 4, IsActive: false},
	})

	rec := doJSON(router, http.MethodPut, "/api/v1/reviews/1/activate", "", map[string]string{
		"X-Buyer-ID":  "8",
		"X-User-Role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.reviews[1].IsActive)
}

func TestUpdateReviewOmitsProductID(t *testing.T) {
	router, store := newReviewRouter(map[int64]*models.Review{
		1: {ID: 1, BuyerID: 7, ProductID: 3, Grade: 4, IsActive: true},
	})

	// The edit payload carries only grade and comment; the bound product
	// never changes after creation.
	rec := doJSON(router, http.MethodPut, "/api/v1/reviews/1", `{"grade":2,"comment":"broke after a week"}`, map[string]string{
		"X-Buyer-ID": "7",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, store.reviews[1].Grade)
	assert.Equal(t, "broke after a week", store.reviews[1].Comment)
	assert.Equal(t, int64(3), store.reviews[1].ProductID)
}

func TestIdentityHeaderRequired(t *testing.T) {
	router, _ := newReviewRouter(map[int64]*models.Review{})

	rec := doJSON(router, http.MethodPost, "/api/v1/reviews", `{"product_id":3,"grade":5}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
