package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/feed"
	"github.com/iota-community/workshops/pkg/pusher/sources"
	"github.com/iota-community/workshops/pkg/sponsor"
	"github.com/iota-community/workshops/pkg/wallet"
)

var testTarget = core.MoveTarget{Package: core.MustParseAddress("0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949"), Module: "media", Function: "post_message"}

type fakeSubmitter struct {
	feed    *feed.Feed
	txBytes []byte
	err     error
}

func (s *fakeSubmitter) Submit(ctx context.Context, w sponsor.Wallet, sender core.Address, content string) (core.Effects, error) {
	if s.err != nil {
		return core.Effects{}, s.err
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	signed, err := w.SignTransaction(ctx, sender, s.txBytes)
	if errors.Is(err, wallet.ErrUserRejected) {
		return core.Effects{}, &sponsor.SubmitError{Kind: sponsor.KindSignatureRejected, Op: "sign", Err: err}
	}
	if err != nil {
		return core.Effects{}, &sponsor.SubmitError{Kind: sponsor.KindNetworkFailure, Op: "sign", Err: err}
	}
	if err := wallet.VerifySignature(sender, s.txBytes, signed.Signature); err != nil {
		return core.Effects{}, err
	}
	effects := core.Effects{Digest: "digest-" + content, Status: core.EffectsStatusSuccess}
	if err := signed.ReportEffects(ctx, effects); err != nil {
		return core.Effects{}, err
	}
	s.feed.Prepend(core.NewPost(content, sender, effects.Digest, time.Now()))
	return effects, nil
}

func (s *fakeSubmitter) Config() sponsor.Config {
	return sponsor.DefaultConfig(testTarget)
}

func testKeypair(t *testing.T, b byte) *wallet.Keypair {
	k, err := wallet.NewKeypair(zap.L(), bytes.Repeat([]byte{b}, 32))
	require.Nil(t, err)
	return k
}

type testEnv struct {
	feed    *feed.Feed
	service *wallet.Keypair
	handler *Handler
	server  *Server
}

func newTestEnv(t *testing.T, submitErr error, limits Limits) *testEnv {
	f := feed.New()
	service := testKeypair(t, 1)
	s := &fakeSubmitter{feed: f, txBytes: []byte("hello chain"), err: submitErr}
	h := NewHandler(zap.L(), s, f, WithServiceKeypair(service), WithLimits(limits))
	server, err := NewServer(zap.L(), h, ":0", WithPostSource(sources.NewPostHub(zap.L())))
	require.Nil(t, err)
	t.Cleanup(func() {
		require.Nil(t, server.Shutdown(context.Background()))
	})
	return &testEnv{feed: f, service: service, handler: h, server: server}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader bytes.Buffer
	if body != nil {
		require.Nil(t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandler_SubmitPost_ServiceAccount(t *testing.T) {
	env := newTestEnv(t, nil, Limits{})

	rec := env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "Hello, Chain!"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[submitPostResponse](t, rec)
	require.Equal(t, "digest-Hello, Chain!", res.Effects.Digest)
	require.NotNil(t, res.Post)
	require.Equal(t, "Hello, Chain!", res.Post.Content)
	require.Equal(t, core.ShortAddress(env.service.Address().String()), res.Post.Author)
	require.Equal(t, 1, env.feed.Len())
}

func TestHandler_SubmitPost_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "invalid json", body: "not an object"},
		{name: "invalid sender", body: submitPostRequest{Content: "hi", Sender: "bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, Limits{})
			rec := env.do(t, http.MethodPost, "/v1/posts", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			res := decode[errorJSON](t, rec)
			require.Equal(t, string(sponsor.KindInvalidRequest), res.Kind)
			require.Equal(t, 0, env.feed.Len())
		})
	}
}

func TestHandler_SubmitPost_WithoutServiceAccount(t *testing.T) {
	f := feed.New()
	h := NewHandler(zap.L(), &fakeSubmitter{feed: f}, f)
	server, err := NewServer(zap.L(), h, ":0", WithPostSource(sources.NewPostHub(zap.L())))
	require.Nil(t, err)
	env := &testEnv{feed: f, handler: h, server: server}

	rec := env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "hi"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ExternalWallet(t *testing.T) {
	user := testKeypair(t, 2)

	t.Run("approve", func(t *testing.T) {
		env := newTestEnv(t, nil, Limits{})
		rec := env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "gm", Sender: user.Address().String()}, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
		pending := decode[pendingSignatureJSON](t, rec)
		require.NotEmpty(t, pending.RequestID)
		require.Equal(t, user.Address().String(), pending.Sender)

		rec = env.do(t, http.MethodGet, "/v1/signatures/"+pending.RequestID, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, pending, decode[pendingSignatureJSON](t, rec))

		txBytes, err := base64.StdEncoding.DecodeString(pending.TxBytes)
		require.Nil(t, err)
		rec = env.do(t, http.MethodPost, "/v1/signatures/"+pending.RequestID, approveSignatureRequest{Signature: user.Sign(txBytes)}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[submitPostResponse](t, rec)
		require.Equal(t, "digest-gm", res.Effects.Digest)
		require.NotNil(t, res.Post)
		require.Equal(t, 1, env.feed.Len())

		rec = env.do(t, http.MethodGet, "/v1/signatures/"+pending.RequestID, nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("reject", func(t *testing.T) {
		env := newTestEnv(t, nil, Limits{})
		rec := env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "gm", Sender: user.Address().String()}, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
		pending := decode[pendingSignatureJSON](t, rec)

		rec = env.do(t, http.MethodDelete, "/v1/signatures/"+pending.RequestID, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, 0, env.feed.Len())

		rec = env.do(t, http.MethodDelete, "/v1/signatures/"+pending.RequestID, nil, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("signature of another key", func(t *testing.T) {
		env := newTestEnv(t, nil, Limits{})
		rec := env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "gm", Sender: user.Address().String()}, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
		pending := decode[pendingSignatureJSON](t, rec)
		txBytes, err := base64.StdEncoding.DecodeString(pending.TxBytes)
		require.Nil(t, err)

		rec = env.do(t, http.MethodPost, "/v1/signatures/"+pending.RequestID, approveSignatureRequest{Signature: env.service.Sign(txBytes)}, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "InvalidSignature", decode[errorJSON](t, rec).Kind)

		// the request is still waiting for a valid signature
		rec = env.do(t, http.MethodDelete, "/v1/signatures/"+pending.RequestID, nil, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestServer_ShutdownAbortsPendingSignatures(t *testing.T) {
	user := testKeypair(t, 2)
	env := newTestEnv(t, nil, Limits{})
	rec := env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "gm", Sender: user.Address().String()}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	pending := decode[pendingSignatureJSON](t, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.Nil(t, env.server.Shutdown(ctx))
	require.Less(t, time.Since(start), time.Second)

	_, err := env.handler.awaitOutcome(context.Background(), pending.RequestID)
	require.Equal(t, sponsor.KindNetworkFailure, sponsor.KindOf(err))
	require.Equal(t, 0, env.feed.Len())
}

func TestHandler_StopHonorsDeadline(t *testing.T) {
	f := feed.New()
	h := NewHandler(zap.L(), &fakeSubmitter{feed: f}, f)
	release := make(chan struct{})
	defer close(release)
	h.wg.Go(func() {
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := h.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandler_SubmitPost_SubmitterFailure(t *testing.T) {
	failure := &sponsor.SubmitError{
		Kind:      sponsor.KindExecutionFailure,
		Op:        "effects",
		Err:       errors.New("transaction failed"),
		Payload:   "MoveAbort(MoveLocation { module: media }, 1)",
		AbortCode: 1,
		Aborted:   true,
	}
	env := newTestEnv(t, failure, Limits{})

	rec := env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "hi"}, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	res := decode[errorJSON](t, rec)
	require.Equal(t, string(sponsor.KindExecutionFailure), res.Kind)
	require.NotNil(t, res.Details)
	require.NotNil(t, res.Details.AbortCode)
	require.Equal(t, uint64(1), *res.Details.AbortCode)
	require.Contains(t, res.Error, "1")
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{name: "invalid request", err: &sponsor.SubmitError{Kind: sponsor.KindInvalidRequest, Op: "validate", Err: errors.New("empty")}, wantStatus: 400, wantKind: "InvalidRequest"},
		{name: "signature rejected", err: &sponsor.SubmitError{Kind: sponsor.KindSignatureRejected, Op: "sign", Err: wallet.ErrUserRejected}, wantStatus: 409, wantKind: "SignatureRejected"},
		{name: "reservation failure", err: &sponsor.SubmitError{Kind: sponsor.KindReservationFailure, Op: "reserve", Err: errors.New("no coins")}, wantStatus: 503, wantKind: "ReservationFailure"},
		{name: "reservation expired", err: &sponsor.SubmitError{Kind: sponsor.KindReservationExpired, Op: "sign", Err: context.DeadlineExceeded}, wantStatus: 504, wantKind: "ReservationExpired"},
		{name: "serialization failure", err: &sponsor.SubmitError{Kind: sponsor.KindSerializationFailure, Op: "build", Err: errors.New("bcs")}, wantStatus: 500, wantKind: "SerializationFailure"},
		{name: "network failure", err: &sponsor.SubmitError{Kind: sponsor.KindNetworkFailure, Op: "execute", Err: errors.New("refused")}, wantStatus: 502, wantKind: "NetworkFailure"},
		{name: "rate limit", err: ErrRateLimit, wantStatus: 429, wantKind: "RateLimit"},
		{name: "post not found", err: errPostNotFound, wantStatus: 404, wantKind: "NotFound"},
		{name: "signature request not found", err: errSignatureNotFound, wantStatus: 404, wantKind: "NotFound"},
		{name: "not found", err: core.ErrEntityNotFound, wantStatus: 404, wantKind: "NotFound"},
		{name: "bad request", err: badRequest("invalid limit %q", "x"), wantStatus: 400, wantKind: "InvalidRequest"},
		{name: "unknown", err: errors.New("boom"), wantStatus: 500, wantKind: "InternalError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, lang := range []string{"en", "de"} {
				status, body := describeError(lang, errors.Wrap(tt.err, "handler"))
				require.Equal(t, tt.wantStatus, status)
				require.Equal(t, tt.wantKind, body.Kind)
				require.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestHandler_GetPosts(t *testing.T) {
	env := newTestEnv(t, nil, Limits{BulkLimits: 2})
	for _, content := range []string{"one", "two", "three"} {
		env.feed.Prepend(core.NewPost(content, env.service.Address(), "digest-"+content, time.Now()))
	}

	rec := env.do(t, http.MethodGet, "/v1/posts?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[postsResponse](t, rec)
	require.Equal(t, 3, res.Total)
	require.Len(t, res.Posts, 2)
	require.Equal(t, "three", res.Posts[0].Content)
	require.Equal(t, "two", res.Posts[1].Content)

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = env.do(t, http.MethodGet, "/v1/posts?limit=2", nil, map[string]string{"If-None-Match": etag})
	require.Equal(t, http.StatusNotModified, rec.Code)

	env.feed.Prepend(core.NewPost("four", env.service.Address(), "digest-four", time.Now()))
	rec = env.do(t, http.MethodGet, "/v1/posts?limit=2", nil, map[string]string{"If-None-Match": etag})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEqual(t, etag, rec.Header().Get("ETag"))

	for _, limit := range []string{"3", "0", "x"} {
		rec = env.do(t, http.MethodGet, "/v1/posts?limit="+limit, nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}

	rec = env.do(t, http.MethodGet, "/v1/posts/digest-two", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "two", decode[core.Post](t, rec).Content)

	rec = env.do(t, http.MethodGet, "/v1/posts/missing", nil, map[string]string{"Accept-Language": "de"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Beitrag nicht gefunden.", decode[errorJSON](t, rec).Error)
}

func TestHandler_GetSponsorConfig(t *testing.T) {
	env := newTestEnv(t, nil, Limits{})
	rec := env.do(t, http.MethodGet, "/v1/sponsor/config", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[sponsorConfigResponse](t, rec)
	require.Equal(t, sponsor.DefaultGasBudget, res.GasBudget)
	require.Equal(t, int64(400), res.ReservationSecs)
	require.Equal(t, testTarget.String(), res.Target)
	require.Equal(t, sponsor.DefaultMaxContentLength, res.MaxContentLength)
	require.Equal(t, env.service.Address().String(), res.ServiceAddress)
	require.NotEmpty(t, res.GasBudgetDisplay)
}

func TestHandler_GetLastEffects(t *testing.T) {
	env := newTestEnv(t, nil, Limits{})
	user := testKeypair(t, 2)

	rec := env.do(t, http.MethodGet, "/v1/accounts/"+user.Address().String()+"/effects", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/posts", submitPostRequest{Content: "gm", Sender: user.Address().String()}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	pending := decode[pendingSignatureJSON](t, rec)
	txBytes, err := base64.StdEncoding.DecodeString(pending.TxBytes)
	require.Nil(t, err)
	rec = env.do(t, http.MethodPost, "/v1/signatures/"+pending.RequestID, approveSignatureRequest{Signature: user.Sign(txBytes)}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/accounts/"+user.Address().String()+"/effects", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[effectsResponse](t, rec)
	require.Equal(t, user.Address().String(), res.Sender)
	require.Equal(t, "digest-gm", res.Effects.Digest)

	rec = env.do(t, http.MethodGet, "/v1/accounts/bob/effects", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, nil, Limits{RequestsPerSecond: 1})

	rec := env.do(t, http.MethodGet, "/v1/sponsor/config", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/sponsor/config", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RateLimit", decode[errorJSON](t, rec).Kind)
}

type mockObjectSource struct {
	OnGetObjectRef func(id core.ObjectID) (core.ObjectRef, error)
}

func (m *mockObjectSource) GetObjectRef(ctx context.Context, id core.ObjectID) (core.ObjectRef, error) {
	return m.OnGetObjectRef(id)
}

func TestHandler_GetObjectRef(t *testing.T) {
	coin := core.MustParseAddress("0x5")
	nodeRef := core.ObjectRef{ObjectID: coin, Version: 7}
	source := &mockObjectSource{OnGetObjectRef: func(id core.ObjectID) (core.ObjectRef, error) {
		switch id {
		case coin:
			return nodeRef, nil
		case core.MustParseAddress("0x6"):
			return core.ObjectRef{}, errors.New("node is down")
		}
		return core.ObjectRef{}, errors.Wrapf(core.ErrEntityNotFound, "object %v", id)
	}}

	tests := []struct {
		name        string
		id          string
		reported    []core.ObjectRef
		wantStatus  int
		wantVersion uint64
	}{
		{name: "from node", id: "0x5", wantStatus: http.StatusOK, wantVersion: 7},
		{name: "newer in service account", id: "0x5", reported: []core.ObjectRef{{ObjectID: coin, Version: 9}}, wantStatus: http.StatusOK, wantVersion: 9},
		{name: "older in service account", id: "0x5", reported: []core.ObjectRef{{ObjectID: coin, Version: 3}}, wantStatus: http.StatusOK, wantVersion: 7},
		{name: "unknown", id: "0x7", wantStatus: http.StatusNotFound},
		{name: "node failure", id: "0x6", wantStatus: http.StatusInternalServerError},
		{name: "invalid id", id: "coin", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, Limits{})
			env.handler.objects = source
			if len(tt.reported) > 0 {
				err := env.service.ReportEffects(context.Background(), core.Effects{Digest: "d", Changed: tt.reported})
				require.Nil(t, err)
			}
			rec := env.do(t, http.MethodGet, "/v1/objects/"+tt.id, nil, nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				ObjectID string `json:"objectId"`
				Version  uint64 `json:"version"`
			}
			require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, coin.String(), body.ObjectID)
			require.Equal(t, tt.wantVersion, body.Version)
		})
	}
}
