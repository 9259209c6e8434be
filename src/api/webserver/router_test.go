package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/filedao/src/api/config"
	"github.com/stake-plus/filedao/src/api/dao"
	"github.com/stake-plus/filedao/src/governance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type nopStore struct{}

func (nopStore) Load(context.Context) (governance.State, bool, error) {
	return governance.State{}, false, nil
}
func (nopStore) Init(context.Context, string) error                     { return nil }
func (nopStore) SaveMember(context.Context, string, bool) error         { return nil }
func (nopStore) SaveProposal(context.Context, governance.Proposal) error { return nil }
func (nopStore) SaveVote(context.Context, governance.Proposal, string, bool, time.Time) error {
	return nil
}
func (nopStore) SaveExecution(context.Context, governance.Effect, time.Time) error { return nil }

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

type server struct {
	t      *testing.T
	router *gin.Engine
	clock  *testClock
	secret []byte
	admin  keypair
}

func newServer(t *testing.T, rate int) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	admin := newKeypair(t)
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	svc, err := dao.Open(context.Background(), nopStore{}, admin.addr, dao.WithClock(clock))
	require.NoError(t, err)

	cfg := config.Config{
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"http://localhost:3000"},
		RateLimit:      rate,
		RateWindow:     time.Minute,
		TokenTTL:       time.Hour,
	}
	router, _ := New(cfg, svc, rdb)
	return &server{t: t, router: router, clock: clock, secret: []byte(cfg.JWTSecret), admin: admin}
}

func (s *server) token(addr string) string {
	tok, err := issueJWT(addr, s.secret, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *server) do(method, path, token string, body interface{}, hdr ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLoginFlow(t *testing.T) {
	s := newServer(t, 100)

	w := s.do(http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": s.admin.addr})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	nonce := decode(t, w)["nonce"].(string)

	w = s.do(http.MethodPost, "/v1/auth/verify", "", gin.H{"address": s.admin.addr, "signature": s.admin.sign(t, nonce)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, s.admin.addr, out["address"])

	w = s.do(http.MethodGet, "/v1/members", out["token"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, s.admin.addr, decode(t, w)["admin"])

	// the nonce is consumed by the first verification
	w = s.do(http.MethodPost, "/v1/auth/verify", "", gin.H{"address": s.admin.addr, "signature": s.admin.sign(t, nonce)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsBadSignature(t *testing.T) {
	s := newServer(t, 100)
	w := s.do(http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": s.admin.addr})
	require.Equal(t, http.StatusOK, w.Code)
	nonce := decode(t, w)["nonce"].(string)

	other := newKeypair(t)
	w = s.do(http.MethodPost, "/v1/auth/verify", "", gin.H{"address": s.admin.addr, "signature": other.sign(t, nonce)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": "garbage"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSecuredRoutesNeedToken(t *testing.T) {
	s := newServer(t, 100)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/members", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/members", "not.a.jwt", nil).Code)

	forged, err := issueJWT(s.admin.addr, []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/members", forged, nil).Code)

	expired, err := issueJWT(s.admin.addr, s.secret, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/members", expired, nil).Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/stats", "", nil).Code)
}

func TestProposalLifecycle(t *testing.T) {
	s := newServer(t, 100)
	adminTok := s.token(s.admin.addr)
	alice := newKeypair(t)
	aliceTok := s.token(alice.addr)

	w := s.do(http.MethodPost, "/v1/members", adminTok, gin.H{"address": alice.addr})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = s.do(http.MethodPost, "/v1/proposals", aliceTok, gin.H{
		"type": "upload", "cid": "QmA", "fileName": "<b>a.txt</b>", "fileSize": 12,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["id"])

	w = s.do(http.MethodPost, "/v1/proposals/1/votes", aliceTok, gin.H{"support": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["yesVotes"])

	w = s.do(http.MethodPost, "/v1/proposals/1/votes", aliceTok, gin.H{"support": false})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AlreadyVoted", decode(t, w)["code"])

	w = s.do(http.MethodPost, "/v1/proposals/1/votes", aliceTok, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/proposals/1/execute", adminTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NotPassed", decode(t, w)["code"])

	w = s.do(http.MethodGet, "/v1/proposals/1", aliceTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, true, out["voted"])
	prop := out["proposal"].(map[string]interface{})
	assert.Equal(t, "a.txt", prop["fileName"])
	assert.Equal(t, "active", prop["status"])
	assert.EqualValues(t, 300, prop["votingPeriod"])
	assert.EqualValues(t, 300, prop["timeLeft"])

	s.clock.t = s.clock.t.Add(301 * time.Second)

	w = s.do(http.MethodPost, "/v1/proposals/1/votes", adminTok, gin.H{"support": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "VotingEnded", decode(t, w)["code"])

	w = s.do(http.MethodPost, "/v1/proposals/1/execute", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["synced"])

	w = s.do(http.MethodPost, "/v1/proposals/1/execute", adminTok, nil)
	assert.Equal(t, "AlreadyExecuted", decode(t, w)["code"])

	w = s.do(http.MethodGet, "/v1/access/QmA", adminTok, nil)
	assert.Equal(t, true, decode(t, w)["access"])
	w = s.do(http.MethodGet, "/v1/access/QmA?address="+alice.addr, adminTok, nil)
	assert.Equal(t, true, decode(t, w)["access"])
	w = s.do(http.MethodGet, "/v1/access/QmOther", aliceTok, nil)
	assert.Equal(t, false, decode(t, w)["access"])

	w = s.do(http.MethodGet, "/v1/proposals?status=executed", aliceTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["proposals"], 1)

	w = s.do(http.MethodPost, "/v1/proposals/1/sync", aliceTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NothingToSync", decode(t, w)["code"])

	w = s.do(http.MethodGet, "/v1/stats", "", nil)
	stats := decode(t, w)
	assert.EqualValues(t, 2, stats["members"])
	assert.EqualValues(t, 1, stats["executed"])
}

func TestProposalValidation(t *testing.T) {
	s := newServer(t, 100)
	adminTok := s.token(s.admin.addr)

	w := s.do(http.MethodPost, "/v1/proposals", adminTok, gin.H{"type": "rename", "cid": "QmA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/proposals", adminTok, gin.H{"type": "share", "cid": "QmA", "votingPeriod": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidVotingPeriod", decode(t, w)["code"])

	// explicit zero is not the same as omitting the field
	w = s.do(http.MethodPost, "/v1/proposals", adminTok, gin.H{"type": "share", "cid": "QmA", "votingPeriod": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidVotingPeriod", decode(t, w)["code"])

	// seconds that would overflow time.Duration into the allowed range
	for _, secs := range []int64{16376798027710464, -16376798027710464, 30*24*3600 + 1, -5} {
		w = s.do(http.MethodPost, "/v1/proposals", adminTok, gin.H{"type": "share", "cid": "QmA", "votingPeriod": secs})
		assert.Equal(t, http.StatusBadRequest, w.Code, secs)
		assert.Equal(t, "InvalidVotingPeriod", decode(t, w)["code"], secs)
	}

	w = s.do(http.MethodPost, "/v1/proposals", adminTok, gin.H{"type": "share", "cid": "QmA", "votingPeriod": 30 * 24 * 3600})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodGet, "/v1/proposals/1", adminTok, nil)
	prop := decode(t, w)["proposal"].(map[string]interface{})
	assert.EqualValues(t, 30*24*3600, prop["votingPeriod"])
	assert.EqualValues(t, 30*24*3600, prop["votingEnd"].(float64)-prop["createdAt"].(float64))

	// a non-member is refused before the period is looked at
	w = s.do(http.MethodPost, "/v1/proposals", s.token(newKeypair(t).addr), gin.H{"type": "share", "cid": "QmA", "votingPeriod": 0})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized", decode(t, w)["code"])

	w = s.do(http.MethodGet, "/v1/proposals/9", adminTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodGet, "/v1/proposals/abc", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMembership(t *testing.T) {
	s := newServer(t, 100)
	adminTok := s.token(s.admin.addr)
	bob := newKeypair(t)
	bobTok := s.token(bob.addr)

	w := s.do(http.MethodPost, "/v1/members", bobTok, gin.H{"address": bob.addr})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/v1/members", adminTok, gin.H{"address": bob.addr})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodPost, "/v1/members", adminTok, gin.H{"address": bob.addr})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AlreadyMember", decode(t, w)["code"])

	w = s.do(http.MethodDelete, "/v1/members/"+s.admin.addr, bobTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CannotRemoveAdmin", decode(t, w)["code"])

	w = s.do(http.MethodDelete, "/v1/members/"+bob.addr, bobTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized", decode(t, w)["code"])

	w = s.do(http.MethodGet, "/v1/members/"+bob.addr, bobTok, nil)
	assert.Equal(t, true, decode(t, w)["member"])

	w = s.do(http.MethodDelete, "/v1/members/"+bob.addr, adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = s.do(http.MethodDelete, "/v1/members/"+bob.addr, adminTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NotAMember", decode(t, w)["code"])
}

func TestListETag(t *testing.T) {
	s := newServer(t, 100)
	tok := s.token(s.admin.addr)

	w := s.do(http.MethodGet, "/v1/files/shared", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = s.do(http.MethodGet, "/v1/files/shared", tok, nil, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = s.do(http.MethodGet, "/v1/files/shared", tok, nil, "If-None-Match", `"stale"`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterRateLimit(t *testing.T) {
	s := newServer(t, 2)
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/stats", "", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodGet, "/v1/stats", "", nil).Code)

	// authenticated callers are counted per address
	tok := s.token(s.admin.addr)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/members", tok, nil).Code)
}
