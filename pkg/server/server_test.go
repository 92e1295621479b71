package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twinbase/twinbase-dlt/pkg/contractCaller"
	"github.com/twinbase/twinbase-dlt/pkg/merkle"
	"github.com/twinbase/twinbase-dlt/pkg/treeFile"
	"github.com/twinbase/twinbase-dlt/pkg/twin"
	"github.com/twinbase/twinbase-dlt/pkg/types"
	"github.com/twinbase/twinbase-dlt/pkg/util"
	"github.com/twinbase/twinbase-dlt/pkg/verifier"
)

const testDoc = `{"dt-id": "twin-1", "name": "pump"}`

type testEnv struct {
	server *Server
	caller *contractCaller.MockIContractCaller
	tree   *merkle.StandardTree
	twin   types.Twin
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	doc, err := twin.Parse([]byte(testDoc))
	require.NoError(t, err)
	tw := doc.Twin()
	other := util.HashText(`{"dt-id": "twin-2"}`)

	tree, err := merkle.OfHashes([][32]byte{tw.Hash, other}, merkle.DefaultOptions())
	require.NoError(t, err)

	mc := &contractCaller.MockIContractCaller{}
	mc.On("GetTwin", mock.Anything, "twin-1").Return(&tw, nil)
	mc.On("VerifyTwinHash", mock.Anything, "twin-1", tw.Hash).Return(true, nil)
	mc.On("GetTwins", mock.Anything).Return([]types.Twin{tw}, nil)
	mc.On("VerifyHash", mock.Anything, mock.Anything, tw.Hash).Return(true, nil)

	v, err := verifier.NewVerifier(mc, mc, &treeFile.StaticSource{Tree: tree}, zap.NewNop())
	require.NoError(t, err)

	return &testEnv{
		server: NewServer(v, cfg, zap.NewNop()),
		caller: mc,
		tree:   tree,
		twin:   tw,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	e.server.GetHandler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// stubValidator lets handler tests force verifier errors
type stubValidator struct {
	validateErr error
	resetErr    error
	proofErr    error
}

func (s *stubValidator) ValidateTwin(context.Context, twin.DocumentLoader) (*verifier.Validation, error) {
	return nil, s.validateErr
}

func (s *stubValidator) GetMerkleProof(context.Context, [32]byte) (*verifier.Proof, error) {
	return nil, s.proofErr
}

func (s *stubValidator) Status() *types.StatusResponseV1 {
	return &types.StatusResponseV1{State: string(verifier.StateValidating)}
}

func (s *stubValidator) Reset() error {
	return s.resetErr
}

func TestValidate_InlineDocument(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodPost, "/api/validate", types.ValidateRequestV1{Document: testDoc})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "twin-1", body["id"])

	merkleReport := body["merkle"].(map[string]interface{})
	assert.Equal(t, true, merkleReport["found"])
	assert.Equal(t, env.tree.Root().Hex(), merkleReport["root"])

	status := decode[types.StatusResponseV1](t, env.do(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, "done", status.State)
	require.NotNil(t, status.Success)
	assert.True(t, *status.Success)

	rec = env.do(t, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status = decode[types.StatusResponseV1](t, rec)
	assert.Equal(t, "idle", status.State)
	assert.Nil(t, status.Success)
}

func TestValidate_DocumentURL(t *testing.T) {
	env := newTestEnv(t, Config{})

	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		_, _ = w.Write([]byte(testDoc))
	}))
	defer docServer.Close()

	rec := env.do(t, http.MethodPost, "/api/validate", types.ValidateRequestV1{DocumentURL: docServer.URL + "/twin-1/index.json"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	validation := decode[map[string]interface{}](t, rec)
	assert.Equal(t, true, validation["success"])
}

func TestValidate_UnreachableDocument(t *testing.T) {
	env := newTestEnv(t, Config{})

	docServer := httptest.NewServer(http.NotFoundHandler())
	defer docServer.Close()

	rec := env.do(t, http.MethodPost, "/api/validate", types.ValidateRequestV1{DocumentURL: docServer.URL})
	require.Equal(t, http.StatusOK, rec.Code)
	validation := decode[map[string]interface{}](t, rec)
	assert.Equal(t, false, validation["success"])
	assert.Contains(t, validation["error"], "unexpected status 404")
}

func TestValidate_OversizedDocumentURL(t *testing.T) {
	env := newTestEnv(t, Config{})

	big := `{"dt-id": "twin-1", "pad": "` + strings.Repeat("a", maxDocumentBytes) + `"}`
	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer docServer.Close()

	// Same size limit as an inline document
	rec := env.do(t, http.MethodPost, "/api/validate", types.ValidateRequestV1{Document: big})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/validate", types.ValidateRequestV1{DocumentURL: docServer.URL})
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Contains(t, decode[types.ErrorResponseV1](t, rec).Error, "size limit")
	env.caller.AssertNotCalled(t, "GetTwin", mock.Anything, mock.Anything)
}

func TestValidate_DocumentHosts(t *testing.T) {
	env := newTestEnv(t, Config{DocumentHosts: []string{"twins.example.org"}})

	docServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("document fetched from a host that is not allowed")
	}))
	defer docServer.Close()

	rec := env.do(t, http.MethodPost, "/api/validate", types.ValidateRequestV1{DocumentURL: docServer.URL})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	status := decode[types.StatusResponseV1](t, env.do(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, "idle", status.State)

	allowed := newTestEnv(t, Config{DocumentHosts: []string{"127.0.0.1"}})
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testDoc))
	}))
	defer okServer.Close()

	rec = allowed.do(t, http.MethodPost, "/api/validate", types.ValidateRequestV1{DocumentURL: okServer.URL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestValidate_BadRequests(t *testing.T) {
	env := newTestEnv(t, Config{})

	testCases := []struct {
		name   string
		method string
		body   interface{}
		want   int
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
		{"empty request", http.MethodPost, types.ValidateRequestV1{}, http.StatusBadRequest},
		{"both fields", http.MethodPost, types.ValidateRequestV1{Document: testDoc, DocumentURL: "https://x"}, http.StatusBadRequest},
		{"local path", http.MethodPost, types.ValidateRequestV1{DocumentURL: "/etc/passwd"}, http.StatusBadRequest},
		{"not json", http.MethodPost, "{", http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, "/api/validate", tc.body)
			assert.Equal(t, tc.want, rec.Code)
			assert.NotEmpty(t, decode[types.ErrorResponseV1](t, rec).Error)
		})
	}
	env.caller.AssertNotCalled(t, "GetTwins", mock.Anything)
}

func TestValidate_InProgress(t *testing.T) {
	s := NewServer(&stubValidator{
		validateErr: verifier.ErrValidationInProgress,
		resetErr:    verifier.ErrValidationInProgress,
	}, Config{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/validate", bytes.NewBufferString(`{"document": "{}"}`))
	rec := httptest.NewRecorder()
	s.GetHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	s.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProof(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/api/proof?hash="+env.twin.HashHex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[types.ProofResponseV1](t, rec)
	assert.True(t, found.Found)
	assert.Equal(t, env.tree.Root().Hex(), found.Root)
	require.Len(t, found.Proof, 1)

	rec = env.do(t, http.MethodGet, "/api/proof?hash="+util.HashText("absent").Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	missing := decode[types.ProofResponseV1](t, rec)
	assert.False(t, missing.Found)
	assert.Empty(t, missing.Proof)

	rec = env.do(t, http.MethodGet, "/api/proof?hash=0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/proof?hash="+env.twin.HashHex(), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestProof_TreeUnavailable(t *testing.T) {
	s := NewServer(&stubValidator{proofErr: errors.New("tree.json not found")}, Config{}, zap.NewNop())

	rec := httptest.NewRecorder()
	s.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/proof?hash="+util.HashText("x").Hex(), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RequestsPerSecond: 0.001, Burst: 2})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/status", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/status", nil).Code)

	rec := env.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decode[types.ErrorResponseV1](t, rec).Error)
}

func TestStaticDocs(t *testing.T) {
	docsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(docsDir, "static", "contract"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "index.html"), []byte("<h1>twins</h1>"), 0o644))

	tree, err := merkle.OfHashes([][32]byte{util.HashText("a")}, merkle.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, treeFile.NewFileWriter(filepath.Join(docsDir, "static", "contract", "tree.json")).Write(tree))

	env := newTestEnv(t, Config{DocsDir: docsDir, RequestsPerSecond: 0.001, Burst: 1})

	rec := env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>twins</h1>")

	// Static files are not rate limited
	for i := 0; i < 3; i++ {
		rec = env.do(t, http.MethodGet, "/static/contract/tree.json", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	loaded, err := merkle.LoadJSON(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, tree.Root(), loaded.Root())
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t, Config{Port: 0})
	require.NoError(t, env.server.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.server.Stop(ctx))
}
