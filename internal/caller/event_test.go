package caller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/contract-bridge/internal/abi"
	"github.com/fystack/contract-bridge/internal/node"
	"github.com/fystack/contract-bridge/internal/rpc"
)

const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// logNode accepts one logs subscription and pushes logs notifications
// to it, one per element of logs.
func logNode(t *testing.T, filters chan<- json.RawMessage, logs ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req rpcReq
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Method {
			case "eth_subscribe":
				if len(req.Params) == 2 {
					filters <- req.Params[1]
				}
				conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0xfeed"})
				for _, l := range logs {
					conn.WriteJSON(map[string]any{
						"jsonrpc": "2.0",
						"method":  "eth_subscription",
						"params":  map[string]any{"subscription": "0xfeed", "result": json.RawMessage(l)},
					})
				}
			default:
				conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": true})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestEventWaiter_ReceivesLog(t *testing.T) {
	filters := make(chan json.RawMessage, 1)
	url := logNode(t, filters, `{
	  "address":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
	  "topics":["`+transferTopic+`"],
	  "data":"0x00000000000000000000000000000000000000000000000000000000000003e8",
	  "blockNumber":"0x10",
	  "transactionHash":"0x1111111111111111111111111111111111111111111111111111111111111111",
	  "transactionIndex":"0x0",
	  "removed":false}`)

	conn, err := node.Dial(context.Background(), url, node.Options{Transport: rpc.TransportWS})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	token := newToken(t, conn)

	c := New(WithEventPollInterval(10 * time.Millisecond))
	waiter, err := c.NewEventWaiter(token, "Transfer")
	require.NoError(t, err)
	t.Cleanup(func() { waiter.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log, err := waiter.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, log)

	assert.Equal(t, common.HexToHash(transferTopic), common.Hash(log.Topics[0]))
	assert.Equal(t, byte(0xe8), log.Data[31])
	require.NotNil(t, log.BlockNumber)
	assert.Equal(t, uint64(16), *log.BlockNumber)
	assert.Nil(t, log.BlockHash)
	require.NotNil(t, log.Removed)
	assert.False(t, *log.Removed)

	var filter struct {
		Address []common.Address `json:"address"`
		Topics  [][]common.Hash  `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(<-filters, &filter))
	assert.Equal(t, []common.Address{common.HexToAddress(tokenAddr)}, filter.Address)
	assert.Equal(t, common.HexToHash(transferTopic), filter.Topics[0][0])

	// The subscription is reused and idle; cancellation yields no log.
	short, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	log, err = waiter.Wait(short)
	assert.NoError(t, err)
	assert.Nil(t, log)
}

func TestEventWaiter_CloseReleasesPendingWait(t *testing.T) {
	filters := make(chan json.RawMessage, 1)
	conn, err := node.Dial(context.Background(), logNode(t, filters), node.Options{Transport: rpc.TransportWS})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	waiter, err := New(WithEventPollInterval(10*time.Millisecond)).NewEventWaiter(newToken(t, conn), "Transfer")
	require.NoError(t, err)

	type result struct {
		log *EventLog
		err error
	}
	done := make(chan result, 1)
	go func() {
		log, err := waiter.Wait(context.Background())
		done <- result{log, err}
	}()

	select {
	case <-filters:
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription")
	}
	require.NoError(t, waiter.Close(context.Background()))

	select {
	case r := <-done:
		assert.NoError(t, r.err)
		assert.Nil(t, r.log)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait still blocked after Close")
	}

	log, err := waiter.Wait(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, log)
}

func TestEventWaiter_NeedsStreaming(t *testing.T) {
	token := newToken(t, connTo(t, httpNode(t, balances(nil)).URL))
	c := New()

	waiter, err := c.NewEventWaiter(token, "Transfer")
	require.NoError(t, err)
	_, err = waiter.Wait(context.Background())
	assert.ErrorIs(t, err, rpc.ErrUnsupportedTransport)

	_, err = c.NewEventWaiter(token, "Approval")
	assert.ErrorIs(t, err, abi.ErrEventNotFound)
}
