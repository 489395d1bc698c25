package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/mintbox/adapters/chain"
	"github.com/layer-3/mintbox/adapters/events"
	"github.com/layer-3/mintbox/adapters/ipfs"
	"github.com/layer-3/mintbox/adapters/store"
	"github.com/layer-3/mintbox/adapters/tokenizer"
	"github.com/layer-3/mintbox/core"
	"github.com/layer-3/mintbox/internal/eth"
	"github.com/layer-3/mintbox/internal/log"
	"github.com/layer-3/mintbox/ports"
	"github.com/layer-3/mintbox/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	sessions *store.MemorySessionStore
	now      time.Time
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithSessions(t, nil)
}

func newTestServerWithSessions(t *testing.T, sessions ports.SessionStore) *testServer {
	t.Helper()
	ts := &testServer{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return ts.now }

	ts.sessions = store.NewMemorySessionStore().WithClock(clock)
	if sessions == nil {
		sessions = ts.sessions
	}

	tk, err := tokenizer.NewJWTTokenizer("access-secret", "refresh-secret")
	require.NoError(t, err)
	tk.WithClock(clock)

	identities := store.NewMemoryIdentityStore()
	logger := log.Nop()
	authService := service.NewAuthService(identities, sessions, eth.NewVerifier(), tk, events.NopPublisher{}, logger)
	userService := service.NewUserService(identities, logger)
	nftService := service.NewNFTService(store.NewMemoryNFTStore(), ipfs.NewMemoryPinner(), chain.DisabledMinter{}, events.NopPublisher{}, logger)

	metrics, err := NewMetrics()
	require.NoError(t, err)

	ts.router = SetupRouter(RouterConfig{
		Auth:    authService,
		Users:   userService,
		NFTs:    nftService,
		Metrics: metrics,
		Logger:  logger,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type testWallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func cookieMap(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

// login runs the nonce, sign and login steps and returns the session cookies
func (ts *testServer) login(t *testing.T, w testWallet) []*http.Cookie {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/api/auth/generate-nonce", gin.H{"walletAddress": w.address})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	nonce, _ := decode(t, rec)["nonce"].(string)
	require.Regexp(t, `^[0-9a-f]{32}$`, nonce)

	sig, err := eth.SignPersonalMessage(w.key, "Sign this message to log in. Nonce: "+nonce)
	require.NoError(t, err)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"walletAddress": w.address, "signature": sig})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookies := cookieMap(rec)
	require.Contains(t, cookies, CookieAccessToken)
	require.Contains(t, cookies, CookieWalletAddress)
	return []*http.Cookie{
		{Name: CookieAccessToken, Value: cookies[CookieAccessToken].Value},
		{Name: CookieWalletAddress, Value: cookies[CookieWalletAddress].Value},
	}
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/generate-nonce", gin.H{"walletAddress": w.address})
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode(t, rec)["nonce"].(string)

	sig, err := eth.SignPersonalMessage(w.key, eth.NonceMessage(nonce))
	require.NoError(t, err)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"walletAddress": w.address, "signature": sig})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "User logged in successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, strings.ToLower(w.address), user["walletAddress"])

	cookies := cookieMap(rec)
	access := cookies[CookieAccessToken]
	wallet := cookies[CookieWalletAddress]
	require.NotNil(t, access)
	require.NotNil(t, wallet)
	assert.True(t, access.HttpOnly)
	assert.True(t, wallet.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
	assert.Equal(t, http.SameSiteStrictMode, wallet.SameSite)
	assert.Equal(t, 15*60, access.MaxAge)
	assert.Equal(t, 7*24*60*60, wallet.MaxAge)
	assert.Equal(t, "/", access.Path)

	session := []*http.Cookie{
		{Name: CookieAccessToken, Value: access.Value},
		{Name: CookieWalletAddress, Value: wallet.Value},
	}

	rec = ts.do(t, http.MethodGet, "/api/auth/me", nil, session...)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/logout", nil, session...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User logged out successfully", decode(t, rec)["message"])
	for _, name := range []string{CookieAccessToken, CookieWalletAddress} {
		c := cookieMap(rec)[name]
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}

	// the browser dropped the cleared cookies
	rec = ts.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing session cookies", decode(t, rec)["message"])
}

func TestLogin_AlreadyLoggedIn(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)

	cookies := ts.login(t, w)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"walletAddress": w.address, "signature": "0x00"}, cookies[1])
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already logged in", decode(t, rec)["message"])
}

func TestLogin_FailuresLookTheSame(t *testing.T) {
	ts := newTestServer(t)
	known := newTestWallet(t)
	unknown := newTestWallet(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/generate-nonce", gin.H{"walletAddress": known.address})
	require.Equal(t, http.StatusOK, rec.Code)

	badSig, err := eth.SignPersonalMessage(unknown.key, eth.NonceMessage("wrong"))
	require.NoError(t, err)

	recKnown := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"walletAddress": known.address, "signature": badSig})
	recUnknown := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"walletAddress": unknown.address, "signature": badSig})

	assert.Equal(t, http.StatusUnauthorized, recKnown.Code)
	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, recKnown.Body.String(), recUnknown.Body.String())
	assert.Equal(t, "Authentication failed", decode(t, recKnown)["message"])
}

func TestLogin_MalformedInput(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"walletAddress": "0xabc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", gin.H{"walletAddress": "0xabc", "signature": "0x00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateNonce_InvalidAddress(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []any{gin.H{}, gin.H{"walletAddress": "0x1234"}, gin.H{"walletAddress": "hello"}} {
		rec := ts.do(t, http.MethodPost, "/api/auth/generate-nonce", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, decode(t, rec)["message"])
	}
}

func TestSessionMiddleware_RenewsExpiredAccess(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)
	cookies := ts.login(t, w)

	ts.now = ts.now.Add(core.AccessTokenTTL + time.Second)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	renewed := cookieMap(rec)[CookieAccessToken]
	require.NotNil(t, renewed)
	assert.NotEqual(t, cookies[0].Value, renewed.Value)
	assert.Equal(t, 15*60, renewed.MaxAge)

	// the renewed cookie works alone on the fast path
	rec = ts.do(t, http.MethodGet, "/api/auth/me", nil, &http.Cookie{Name: CookieAccessToken, Value: renewed.Value})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionMiddleware_FastPathSkipsStore(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)
	cookies := ts.login(t, w)

	_, err := ts.sessions.Delete(context.Background(), w.address)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", nil, cookies[0])
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionMiddleware_RevokedSession(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)
	cookies := ts.login(t, w)

	rec := ts.do(t, http.MethodPost, "/api/auth/logout", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)

	ts.now = ts.now.Add(core.AccessTokenTTL + time.Second)

	rec = ts.do(t, http.MethodGet, "/api/auth/me", nil, cookies...)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Session expired", decode(t, rec)["message"])
}

func TestSessionMiddleware_Unauthorized(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decode(t, rec)["message"])

	rec = ts.do(t, http.MethodGet, "/api/auth/me", nil, &http.Cookie{Name: CookieWalletAddress, Value: "not-an-address"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/auth/me", nil, &http.Cookie{Name: CookieAccessToken, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMiddleware_InvalidStoredToken(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)

	require.NoError(t, ts.sessions.Put(context.Background(), w.address, "garbage", time.Hour))

	rec := ts.do(t, http.MethodGet, "/api/auth/me", nil, &http.Cookie{Name: CookieWalletAddress, Value: strings.ToLower(w.address)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["message"])
}

type brokenSessions struct{}

func (brokenSessions) Put(context.Context, string, string, time.Duration) error {
	return errors.Join(core.ErrSessionStore, errors.New("connection refused"))
}

func (brokenSessions) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.Join(core.ErrSessionStore, errors.New("connection refused"))
}

func (brokenSessions) Delete(context.Context, string) (int64, error) {
	return 0, errors.Join(core.ErrSessionStore, errors.New("connection refused"))
}

func TestSessionStoreFailure(t *testing.T) {
	ts := newTestServerWithSessions(t, brokenSessions{})
	w := newTestWallet(t)
	wallet := &http.Cookie{Name: CookieWalletAddress, Value: strings.ToLower(w.address)}

	rec := ts.do(t, http.MethodGet, "/api/auth/me", nil, wallet)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/logout", nil, wallet)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Session store unavailable", decode(t, rec)["message"])
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)
	cookies := ts.login(t, w)

	before, _, err := ts.sessions.Get(context.Background(), w.address)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/auth/refresh", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, cookieMap(rec), CookieAccessToken)

	after, _, err := ts.sessions.Get(context.Background(), w.address)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	rec = ts.do(t, http.MethodPost, "/api/auth/refresh", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateUser(t *testing.T) {
	ts := newTestServer(t)
	alice := newTestWallet(t)
	cookies := ts.login(t, alice)

	rec := ts.do(t, http.MethodGet, "/api/auth/me", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode(t, rec)["user"].(map[string]any)["id"].(string)

	rec = ts.do(t, http.MethodPut, "/api/users/"+id, gin.H{"username": "alice", "email": "alice@example.com"}, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, strings.ToLower(alice.address), body["walletAddress"])

	rec = ts.do(t, http.MethodPut, "/api/users/someone-else", gin.H{"username": "mallory"}, cookies...)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/users/"+id, gin.H{"username": "ab"}, cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "username must be 3-20 characters", decode(t, rec)["message"])

	rec = ts.do(t, http.MethodPut, "/api/users/"+id, gin.H{"email": "not-an-email"}, cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email is invalid", decode(t, rec)["message"])

	bob := newTestWallet(t)
	bobCookies := ts.login(t, bob)
	rec = ts.do(t, http.MethodGet, "/api/auth/me", nil, bobCookies...)
	bobID := decode(t, rec)["user"].(map[string]any)["id"].(string)

	rec = ts.do(t, http.MethodPut, "/api/users/"+bobID, gin.H{"username": "alice"}, bobCookies...)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func pngImage(pixels string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), pixels...)
}

func multipartNFT(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", "art.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, fields map[string]string, image []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartNFT(t, fields, image)
	req := httptest.NewRequest(http.MethodPost, "/api/NFTs/create-nft", body)
	req.Header.Set("Content-Type", contentType)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateNFT(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)
	cookies := ts.login(t, w)

	fields := map[string]string{
		"name":           "Sunrise",
		"description":    "First light",
		"creatorAddress": w.address,
		"price":          "0.25",
	}

	rec := ts.upload(t, fields, pngImage("pixels"), cookies...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode(t, rec)
	id := created["id"].(string)
	assert.Equal(t, "0.25", created["price"])
	assert.Equal(t, strings.ToLower(w.address), created["ownerAddress"])
	assert.Equal(t, "Sepolia", created["blockchain"])
	assert.True(t, strings.HasPrefix(created["imageUrl"].(string), "ipfs://"))
	assert.True(t, strings.HasPrefix(created["metadataGatewayUrl"].(string), "https://ipfs.io/ipfs/"))

	rec = ts.upload(t, fields, pngImage("pixels"), cookies...)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/NFTs/mine", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0]["id"])

	rec = ts.do(t, http.MethodGet, "/api/NFTs/"+id, nil, cookies...)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/NFTs/does-not-exist", nil, cookies...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateNFT_Rejects(t *testing.T) {
	ts := newTestServer(t)
	w := newTestWallet(t)
	cookies := ts.login(t, w)

	valid := func() map[string]string {
		return map[string]string{
			"name":           "Sunrise",
			"description":    "First light",
			"creatorAddress": w.address,
			"price":          "1",
		}
	}

	rec := ts.upload(t, valid(), nil, cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.upload(t, valid(), []byte("%PDF-1.4 not an image"), cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	badPrice := valid()
	badPrice["price"] = "cheap"
	rec = ts.upload(t, badPrice, pngImage(""), cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := valid()
	other["creatorAddress"] = newTestWallet(t).address
	rec = ts.upload(t, other, pngImage(""), cookies...)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.upload(t, valid(), pngImage(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mintbox_http_requests_total")
}

func TestRecoveryRespondsWithJSON(t *testing.T) {
	ts := newTestServer(t)
	ts.router.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := ts.do(t, http.MethodGet, "/boom", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["message"])
}
