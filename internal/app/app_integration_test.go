//go:build integration

package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/clavis-auth/internal/config"
	"github.com/prperemyshlev/clavis-auth/internal/repository"
	"github.com/prperemyshlev/clavis-auth/internal/utils"
	"github.com/prperemyshlev/clavis-auth/pkg/database"
	"github.com/prperemyshlev/clavis-auth/pkg/messaging"
	"github.com/prperemyshlev/clavis-auth/pkg/observability"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const (
	testClientID = "web-client.apps.googleusercontent.com"
	testKeyID    = "test-key-1"
	testSecret   = "integration-secret-that-is-at-least-32-chars"
	googleIssuer = "https://accounts.google.com"
)

type testInfra struct {
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

func (i *testInfra) Postgres() *database.Postgres         { return i.postgres }
func (i *testInfra) Redis() *database.Redis               { return i.redis }
func (i *testInfra) Kafka() *messaging.Kafka              { return nil }
func (i *testInfra) Logger() *zap.Logger                  { return i.logger }
func (i *testInfra) MetricsHandler() http.Handler         { return i.metricsHandler }
func (i *testInfra) MeterProvider() *metric.MeterProvider { return i.meterProvider }
func (i *testInfra) Shutdown(context.Context) error       { return nil }

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
}

type AppSuite struct {
	suite.Suite
	ctx            context.Context
	pgContainer    *postgres.PostgresContainer
	redisContainer *tcredis.RedisContainer
	infra          *testInfra
	google         *httptest.Server
	signingKey     *rsa.PrivateKey
	router         *gin.Engine
}

func TestAppSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AppSuite))
}

func (s *AppSuite) SetupSuite() {
	s.ctx = context.Background()
	gin.SetMode(gin.TestMode)

	pg, err := postgres.Run(s.ctx, "postgres:16-alpine",
		postgres.WithDatabase("clavis_auth"),
		postgres.WithUsername("clavis"),
		postgres.WithPassword("clavis_password"),
		postgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.pgContainer = pg

	host, err := pg.Host(s.ctx)
	s.Require().NoError(err)
	port, err := pg.MappedPort(s.ctx, "5432/tcp")
	s.Require().NoError(err)

	rc, err := tcredis.Run(s.ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.redisContainer = rc

	redisURL, err := rc.ConnectionString(s.ctx)
	s.Require().NoError(err)
	redisOpts, err := redis.ParseURL(redisURL)
	s.Require().NoError(err)

	s.signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.google = httptest.NewServer(http.HandlerFunc(s.serveCerts))

	cfg := &config.Config{
		Postgres: config.PostgresConfig{
			Host:     host,
			Port:     port.Port(),
			User:     "clavis",
			Password: "clavis_password",
			DBName:   "clavis_auth",
			SSLMode:  "disable",
		},
		JWT: config.JWTConfig{
			Secret:             testSecret,
			AccessTokenExpiry:  config.Duration{Duration: 60 * time.Minute},
			RefreshTokenExpiry: config.Duration{Duration: 7 * 24 * time.Hour},
		},
		Google: config.GoogleConfig{
			ClientIDs:       []string{testClientID},
			Issuers:         []string{googleIssuer},
			CertsURL:        s.google.URL + "/certs",
			ExchangeTimeout: config.Duration{Duration: 5 * time.Second},
			KeysCacheTTL:    config.Duration{Duration: time.Hour},
		},
		Session: config.SessionConfig{
			OAuthStateTTL: config.Duration{Duration: 10 * time.Minute},
		},
		Security: config.SecurityConfig{
			BCryptCost:        4,
			RateLimitRequests: 1000,
			RateLimitWindow:   config.Duration{Duration: time.Minute},
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	logger := zap.NewNop()
	s.Require().NoError(migrate(cfg.Postgres.URL(), logger))

	pgDB, err := database.NewPostgres(s.ctx, cfg.Postgres.DSN())
	s.Require().NoError(err)
	redisDB, err := database.NewRedis(s.ctx, database.RedisOptions{Addr: redisOpts.Addr, KeyPrefix: "clavis-test"})
	s.Require().NoError(err)

	meterProvider, metricsHandler, err := observability.InitTelemetry("clavis-auth-test")
	s.Require().NoError(err)

	s.infra = &testInfra{
		postgres:       pgDB,
		redis:          redisDB,
		logger:         logger,
		metricsHandler: metricsHandler,
		meterProvider:  meterProvider,
	}

	application, err := NewApp(s.infra, cfg)
	s.Require().NoError(err)
	s.router = application.Router()
}

func (s *AppSuite) TearDownSuite() {
	if s.google != nil {
		s.google.Close()
	}
	if s.infra != nil {
		_ = s.infra.postgres.Close()
		_ = s.infra.redis.Close()
		_ = s.infra.meterProvider.Shutdown(s.ctx)
	}
	s.NoError(testcontainers.TerminateContainer(s.redisContainer))
	s.NoError(testcontainers.TerminateContainer(s.pgContainer))
}

func (s *AppSuite) SetupTest() {
	_, err := s.infra.postgres.DB.ExecContext(s.ctx, "TRUNCATE users CASCADE")
	s.Require().NoError(err)
	s.Require().NoError(s.infra.redis.Client.FlushDB(s.ctx).Err())
}

func (s *AppSuite) serveCerts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/certs" {
		http.NotFound(w, r)
		return
	}

	pub := s.signingKey.PublicKey
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (s *AppSuite) idToken(subject, email, audience string) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":            googleIssuer,
		"aud":            audience,
		"sub":            subject,
		"email":          email,
		"email_verified": true,
		"name":           gofakeit.Name(),
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(s.signingKey)
	s.Require().NoError(err)
	return signed
}

func (s *AppSuite) call(method, path string, body any, accessToken string) (int, envelope) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PuzzleGame/3.0 (iPhone; iOS 17.2)")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *AppSuite) login(subject, email string) envelope {
	status, env := s.call(http.MethodPost, "/api/v1/auth/google/login",
		map[string]string{"id_token": s.idToken(subject, email, testClientID)}, "")
	s.Require().Equal(http.StatusOK, status, env)
	return env
}

func (s *AppSuite) count(query string, args ...any) int {
	var n int
	s.Require().NoError(s.infra.postgres.DB.QueryRowContext(s.ctx, query, args...).Scan(&n))
	return n
}

func (s *AppSuite) TestHealth() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "pass")
}

func (s *AppSuite) TestLogin_SameSubjectSameUser() {
	first := s.login("u1", "u1@example.com")
	second := s.login("u1", "u1@example.com")

	s.True(first.Success)
	s.NotEmpty(first.Data["access_token"])
	s.NotEmpty(first.Data["refresh_token"])
	firstUser := first.Data["user"].(map[string]any)
	secondUser := second.Data["user"].(map[string]any)
	s.NotEmpty(firstUser["id"])
	s.Equal(firstUser["id"], secondUser["id"])

	s.Equal(1, s.count("SELECT COUNT(*) FROM users WHERE provider_user_id = $1", "u1"))
	s.Equal(2, s.count("SELECT COUNT(*) FROM refresh_tokens WHERE user_id = $1", firstUser["id"]))
}

func (s *AppSuite) TestLogin_ConcurrentFirstLogins() {
	const attempts = 10
	bodies := make([][]byte, attempts)
	for i := range bodies {
		raw, err := json.Marshal(map[string]string{"id_token": s.idToken("racer", "racer@example.com", testClientID)})
		s.Require().NoError(err)
		bodies[i] = raw
	}

	var wg sync.WaitGroup
	statuses := make([]int, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := bodies[i]
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/login", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			statuses[i] = w.Code
		}(i)
	}
	wg.Wait()

	for _, status := range statuses {
		s.Equal(http.StatusOK, status)
	}
	s.Equal(1, s.count("SELECT COUNT(*) FROM users WHERE provider_user_id = $1", "racer"))
	s.Equal(attempts, s.count("SELECT COUNT(*) FROM refresh_tokens"))
}

func (s *AppSuite) TestLogin_WrongAudienceWritesNothing() {
	status, env := s.call(http.MethodPost, "/api/v1/auth/google/login",
		map[string]string{"id_token": s.idToken("u2", "u2@example.com", "someone-else.apps.googleusercontent.com")}, "")

	s.Equal(http.StatusUnauthorized, status)
	s.Equal("identity_verification_failed", env.Data["error"])
	s.Equal(0, s.count("SELECT COUNT(*) FROM users"))
	s.Equal(0, s.count("SELECT COUNT(*) FROM refresh_tokens"))
}

func (s *AppSuite) TestRefresh_StoredExpiryInPast() {
	login := s.login("u3", "u3@example.com")
	refreshToken := login.Data["refresh_token"].(string)

	_, err := s.infra.postgres.DB.ExecContext(s.ctx,
		"UPDATE refresh_tokens SET expires_at = NOW() - INTERVAL '1 second' WHERE token_hash = $1",
		repository.HashToken(refreshToken))
	s.Require().NoError(err)

	status, env := s.call(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refreshToken}, "")

	s.Equal(http.StatusUnauthorized, status)
	s.Equal("refresh_token_expired", env.Data["error"])
}

func (s *AppSuite) TestRefresh_NoRotation() {
	login := s.login("u4", "u4@example.com")
	refreshToken := login.Data["refresh_token"].(string)

	for i := 0; i < 2; i++ {
		status, env := s.call(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refreshToken}, "")
		s.Require().Equal(http.StatusOK, status)
		s.NotEmpty(env.Data["access_token"])
		s.NotContains(env.Data, "refresh_token")
	}

	s.Equal(1, s.count("SELECT COUNT(*) FROM refresh_tokens WHERE token_hash = $1 AND revoked = FALSE",
		repository.HashToken(refreshToken)))
}

func (s *AppSuite) TestLogoutThenRefresh() {
	login := s.login("u5", "u5@example.com")
	body := map[string]string{"refresh_token": login.Data["refresh_token"].(string)}

	status, env := s.call(http.MethodPost, "/api/v1/auth/logout", body, "")
	s.Equal(http.StatusOK, status)
	s.Equal("logged out successfully", env.Data["message"])

	status, env = s.call(http.MethodPost, "/api/v1/auth/refresh", body, "")
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("invalid_refresh_token", env.Data["error"])

	status, env = s.call(http.MethodPost, "/api/v1/auth/logout", body, "")
	s.Equal(http.StatusOK, status)
	s.True(env.Success)
	s.Equal("token already logged out", env.Data["message"])

	s.Equal(1, s.count("SELECT COUNT(*) FROM refresh_tokens WHERE revoked = TRUE"))
}

func (s *AppSuite) TestLogout_UnknownToken() {
	issued, err := utils.NewJWTManager(testSecret, time.Hour, time.Hour).Issue(gofakeit.UUID())
	s.Require().NoError(err)

	status, env := s.call(http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": issued.RefreshToken}, "")

	s.Equal(http.StatusNotFound, status)
	s.Equal("token_not_found", env.Data["error"])
}

func (s *AppSuite) TestMe() {
	login := s.login("u6", "u6@example.com")
	accessToken := login.Data["access_token"].(string)

	status, env := s.call(http.MethodGet, "/api/v1/auth/me", nil, accessToken)
	s.Require().Equal(http.StatusOK, status)
	user := env.Data["user"].(map[string]any)
	s.Equal("u6@example.com", user["email"])
	s.Equal("google", user["provider"])

	foreign, _, err := utils.NewJWTManager("some-other-secret-that-is-at-least-32-chars", time.Hour, time.Hour).
		IssueAccessToken(user["id"].(string))
	s.Require().NoError(err)

	status, env = s.call(http.MethodGet, "/api/v1/auth/me", nil, foreign)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("invalid_token_signature", env.Data["error"])

	status, env = s.call(http.MethodGet, "/api/v1/auth/me", nil, "")
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("authentication_required", env.Data["error"])
}

func (s *AppSuite) TestAccessTokenIgnoresStore() {
	login := s.login("u7", "u7@example.com")

	_, err := s.infra.postgres.DB.ExecContext(s.ctx, "DELETE FROM refresh_tokens")
	s.Require().NoError(err)

	status, _ := s.call(http.MethodGet, "/api/v1/auth/me", nil, login.Data["access_token"].(string))
	s.Equal(http.StatusOK, status)
}

func (s *AppSuite) TestSessionsAndLogoutAll() {
	s.login("u8", "u8@example.com")
	latest := s.login("u8", "u8@example.com")
	accessToken := latest.Data["access_token"].(string)

	status, env := s.call(http.MethodGet, "/api/v1/auth/sessions", nil, accessToken)
	s.Require().Equal(http.StatusOK, status)
	s.Len(env.Data["sessions"], 2)

	status, env = s.call(http.MethodPost, "/api/v1/auth/logout/all", nil, accessToken)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(float64(2), env.Data["revoked"])

	status, env = s.call(http.MethodGet, "/api/v1/auth/sessions", nil, accessToken)
	s.Require().Equal(http.StatusOK, status)
	s.Empty(env.Data["sessions"])
}

func (s *AppSuite) TestRevokedFlagIsMonotonic() {
	login := s.login("u9", "u9@example.com")
	hash := repository.HashToken(login.Data["refresh_token"].(string))

	_, err := s.infra.postgres.DB.ExecContext(s.ctx, "UPDATE refresh_tokens SET revoked = TRUE, revoked_at = NOW() WHERE token_hash = $1", hash)
	s.Require().NoError(err)

	_, err = s.infra.postgres.DB.ExecContext(s.ctx, "UPDATE refresh_tokens SET revoked = FALSE WHERE token_hash = $1", hash)
	s.Error(err)
}

func (s *AppSuite) TestDisabledRoutesAreAbsent() {
	for _, path := range []string{"/api/v1/auth/apple/login", "/api/v1/auth/dev/login"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		s.Equal(http.StatusNotFound, w.Code, path)
	}
}
