package chain

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPool_ReusesClients(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	pool := NewPool(zaptest.NewLogger(t))
	defer pool.Close()

	c1, err := pool.Get(srv.URL)
	require.NoError(t, err)
	c2, err := pool.Get(srv.URL)
	require.NoError(t, err)
	require.Same(t, c1, c2)

	c3, err := pool.Get(srv.URL + "/other")
	require.NoError(t, err)
	require.NotSame(t, c1, c3)
}
