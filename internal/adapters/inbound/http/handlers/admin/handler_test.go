package admin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/handlers/admin"
	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"
)

type AdminHandlerTestSuite struct {
	suite.Suite

	cache   *cache.Resilient
	handler *admin.Handler
	router  chi.Router
}

func TestAdminHandlerTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(AdminHandlerTestSuite))
}

func (s *AdminHandlerTestSuite) SetupTest() {
	s.cache = cache.NewResilient(nil, cache.NewLocalStore(0), cache.Options{})
	s.handler = admin.NewHandler(s.cache, logger.NewTestLogger())

	s.router = chi.NewRouter()
	s.router.Get("/admin/cache", s.handler.ListCache)
	s.router.Delete("/admin/cache", s.handler.ClearCache)
	s.router.Delete("/admin/cache/{key}", s.handler.DeleteCacheKey)

	ctx := context.Background()
	s.cache.Set(ctx, "suggestions:c-1:abc", []byte(`{}`), time.Minute)
	s.cache.Set(ctx, "discover:normal:policy-legislation", []byte(`{}`), time.Minute)
}

func (s *AdminHandlerTestSuite) serve(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func (s *AdminHandlerTestSuite) TestListCache() {
	rec := s.serve(http.MethodGet, "/admin/cache")

	s.Require().Equal(http.StatusOK, rec.Code)

	var listing struct {
		Count int      `json:"count"`
		Keys  []string `json:"keys"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listing))
	s.Require().Equal(2, listing.Count)
	s.Require().Equal([]string{"discover:normal:policy-legislation", "suggestions:c-1:abc"}, listing.Keys)
}

func (s *AdminHandlerTestSuite) TestDeleteCacheKey() {
	rec := s.serve(http.MethodDelete, "/admin/cache/suggestions:c-1:abc")

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().False(s.cache.Has(context.Background(), "suggestions:c-1:abc"))
	s.Require().True(s.cache.Has(context.Background(), "discover:normal:policy-legislation"))
}

func (s *AdminHandlerTestSuite) TestClearCache() {
	rec := s.serve(http.MethodDelete, "/admin/cache")

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().Empty(s.cache.GetAll(context.Background()))
}

func (s *AdminHandlerTestSuite) TestCacheUnavailable() {
	handler := admin.NewHandler(nil, logger.NewTestLogger())

	rec := httptest.NewRecorder()
	handler.ListCache(rec, httptest.NewRequest(http.MethodGet, "/admin/cache", nil))

	s.Require().Equal(http.StatusServiceUnavailable, rec.Code)
}
