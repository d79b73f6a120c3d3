package contract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/node"
	"github.com/fystack/contract-bridge/internal/rpc"
)

const (
	tokenAbi = `[{"type":"function","name":"balanceOf","inputs":[{"type":"address"}],"outputs":[{"type":"uint256"}]}]`
	addrA    = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	addrB    = "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"
)

func readyConn(t *testing.T) *node.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	c := node.New(rpc.NewHTTPClient(srv.URL, nil, time.Second, nil))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	conn := readyConn(t)

	_, err := New(conn, "0x1234", []byte(tokenAbi))
	assert.ErrorIs(t, err, ErrInvalidAddress)

	for _, doc := range []string{``, `{}`, `[]`} {
		_, err = New(conn, addrA, []byte(doc))
		assert.ErrorIs(t, err, ErrInvalidAbi, doc)
	}

	failed, dialErr := node.Dial(context.Background(), "ftp://nowhere", node.Options{})
	require.Error(t, dialErr)
	_, err = New(failed, addrA, []byte(tokenAbi))
	assert.ErrorIs(t, err, ErrConnectionNotReady)

	c, err := New(conn, addrA, []byte(tokenAbi))
	require.NoError(t, err)
	got, err := c.Conn()
	require.NoError(t, err)
	assert.Same(t, conn, got)

	types, err := c.Interface().ParameterTypes("balanceOf")
	require.NoError(t, err)
	assert.Equal(t, []string{"address"}, types)
}

func TestBinder_Rebinding(t *testing.T) {
	b := NewBinder(readyConn(t), []byte(tokenAbi))
	assert.Nil(t, b.Current())

	first, err := b.Bind(addrA)
	require.NoError(t, err)

	again, err := b.Bind(strings.ToUpper(addrA[2:]))
	require.NoError(t, err)
	assert.Same(t, first, again, "same address must not rebuild")
	assert.Same(t, first, b.Current())

	second, err := b.Bind(addrB)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	wantB, _ := abi.ParseAddress(addrB)
	assert.Equal(t, wantB, second.Address())
	assert.Same(t, second, b.Current())

	// The old snapshot is untouched.
	wantA, _ := abi.ParseAddress(addrA)
	assert.Equal(t, wantA, first.Address())
}

func TestBinder_FailedRebuildClearsSlot(t *testing.T) {
	b := NewBinder(readyConn(t), []byte(tokenAbi))
	_, err := b.Bind(addrA)
	require.NoError(t, err)

	_, err = b.Bind("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Nil(t, b.Current())

	bad := NewBinder(readyConn(t), []byte(`{}`))
	_, err = bad.Bind(addrA)
	assert.ErrorIs(t, err, ErrInvalidAbi)
	assert.Nil(t, bad.Current())
}
