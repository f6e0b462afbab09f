package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/middleware"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ratelimit"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"
)

type fakeAdmitter struct {
	decision   ratelimit.Decision
	err        error
	identities []string
}

func (f *fakeAdmitter) Admit(_ context.Context, identity string, _ ratelimit.Policy) (ratelimit.Decision, error) {
	f.identities = append(f.identities, identity)

	return f.decision, f.err
}

type RateLimitTestSuite struct {
	suite.Suite

	limit config.EndpointLimit
}

func TestRateLimitTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(RateLimitTestSuite))
}

func (s *RateLimitTestSuite) SetupTest() {
	s.limit = config.EndpointLimit{KeyPrefix: "ratelimit:suggestions", Mode: "sliding", Requests: 10, Window: time.Minute}
}

func (s *RateLimitTestSuite) serve(admitter middleware.Admitter) (*httptest.ResponseRecorder, bool) {
	served := false

	handler := middleware.RateLimit(admitter, s.limit, "Too many suggestion requests. Please slow down.", logger.NewTestLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			served = true
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/suggestions", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), model.Identity{UserID: "user-1"}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec, served
}

func (s *RateLimitTestSuite) TestAllowedSetsQuotaHeaders() {
	resetAt := time.UnixMilli(1_700_000_060_000)
	admitter := &fakeAdmitter{decision: ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 7, ResetAt: resetAt}}

	rec, served := s.serve(admitter)

	s.Require().True(served)
	s.Require().Equal([]string{"user-1"}, admitter.identities)
	s.Require().Equal("10", rec.Header().Get(middleware.RateLimitLimitHeader))
	s.Require().Equal("7", rec.Header().Get(middleware.RateLimitRemainingHeader))
	s.Require().Equal(strconv.FormatInt(resetAt.UnixMilli(), 10), rec.Header().Get(middleware.RateLimitResetHeader))
	s.Require().Empty(rec.Header().Get(middleware.RetryAfterHeader))
}

func (s *RateLimitTestSuite) TestRejected() {
	admitter := &fakeAdmitter{decision: ratelimit.Decision{
		Allowed:    false,
		Limit:      10,
		Remaining:  0,
		ResetAt:    time.Now().Add(1500 * time.Millisecond),
		RetryAfter: 1500 * time.Millisecond,
	}}

	rec, served := s.serve(admitter)

	s.Require().False(served)
	s.Require().Equal(http.StatusTooManyRequests, rec.Code)
	s.Require().Equal("2", rec.Header().Get(middleware.RetryAfterHeader))
	s.Require().Equal("0", rec.Header().Get(middleware.RateLimitRemainingHeader))

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Require().Equal("Too many suggestion requests. Please slow down.", body["message"])
}

func (s *RateLimitTestSuite) TestUnboundedHasNoHeaders() {
	rec, served := s.serve(&fakeAdmitter{decision: ratelimit.Decision{Allowed: true, Unbounded: true}})

	s.Require().True(served)
	s.Require().Empty(rec.Header().Get(middleware.RateLimitLimitHeader))
	s.Require().Empty(rec.Header().Get(middleware.RateLimitRemainingHeader))
}

func (s *RateLimitTestSuite) TestEvaluationError() {
	admitter := &fakeAdmitter{err: errors.New("keydb unreachable")}

	s.Run("fail open serves the request", func() {
		s.limit.FailOpen = true

		rec, served := s.serve(admitter)

		s.Require().True(served)
		s.Require().Equal(http.StatusOK, rec.Code)
	})

	s.Run("fail closed answers 503", func() {
		s.limit.FailOpen = false

		rec, served := s.serve(admitter)

		s.Require().False(served)
		s.Require().Equal(http.StatusServiceUnavailable, rec.Code)
	})
}
