package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSClient is a WebSocket connection used as an optional fast path for
// transaction confirmation via signatureSubscribe. Transactions are
// submitted one at a time so a single synchronous wait loop is enough;
// there is no subscription multiplexing here.
type WSClient struct {
	url    string
	logger *logrus.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int
}

// wsMessage is the JSON-RPC envelope used on the WebSocket wire.
type wsMessage struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      *int              `json:"id,omitempty"`
	Method  string            `json:"method,omitempty"`
	Params  interface{}       `json:"params,omitempty"`
	Result  json.RawMessage   `json:"result,omitempty"`
	Error   *jsonrpc.RPCError `json:"error,omitempty"`
}

// signatureNotification is the payload of a signatureNotification message.
type signatureNotification struct {
	Subscription int `json:"subscription"`
	Result       struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Err interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

// NewWSClient creates a WebSocket confirmation client for the given url.
func NewWSClient(url string, logger *logrus.Logger) *WSClient {
	return &WSClient{
		url:    url,
		logger: logger,
		nextID: 1,
	}
}

// Connect establishes the WebSocket connection.
func (ws *WSClient) Connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, resp, err := dialer.Dial(ws.url, nil)
	if err != nil {
		if resp != nil {
			ws.logger.WithFields(logrus.Fields{
				"status": resp.Status,
				"url":    ws.url,
			}).Error("WebSocket connection failed")
		}
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	conn.SetReadLimit(1024 * 1024)

	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()

	ws.logger.WithField("url", ws.url).Debug("WebSocket connected")
	return nil
}

// Close closes the WebSocket connection.
func (ws *WSClient) Close() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.conn != nil {
		err := ws.conn.Close()
		ws.conn = nil
		return err
	}
	return nil
}

// WaitForSignature subscribes to status updates for signature and blocks
// until the transaction reaches confirmed commitment, the timeout elapses,
// or ctx is cancelled. The returned value is the on-chain transaction error
// as reported by the cluster; nil means the transaction succeeded.
func (ws *WSClient) WaitForSignature(ctx context.Context, signature solana.Signature, timeout time.Duration) (interface{}, error) {
	ws.mu.Lock()
	conn := ws.conn
	id := ws.nextID
	ws.nextID++
	ws.mu.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("WebSocket not connected")
	}

	subscribe := wsMessage{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature.String(),
			map[string]interface{}{"commitment": "confirmed"},
		},
	}
	data, err := json.Marshal(subscribe)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal subscribe request: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("failed to send signatureSubscribe: %w", err)
	}

	deadline := time.Now().Add(timeout)
	subID := -1

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("WebSocket read failed: %w", err)
		}

		var message wsMessage
		if err := json.Unmarshal(raw, &message); err != nil {
			ws.logger.WithError(err).Debug("Ignoring unparseable WebSocket message")
			continue
		}

		if message.Error != nil {
			return nil, fmt.Errorf("signatureSubscribe rejected: %s", message.Error.Message)
		}

		// Subscription confirmation carries our request id and the
		// subscription number used by later notifications.
		if message.ID != nil && *message.ID == id && message.Result != nil {
			if err := json.Unmarshal(message.Result, &subID); err != nil {
				return nil, fmt.Errorf("failed to parse subscription id: %w", err)
			}
			ws.logger.WithFields(logrus.Fields{
				"signature":    signature.String(),
				"subscription": subID,
			}).Debug("Signature subscription confirmed")
			continue
		}

		if message.Method != "signatureNotification" {
			continue
		}

		paramData, err := json.Marshal(message.Params)
		if err != nil {
			continue
		}
		var notification signatureNotification
		if err := json.Unmarshal(paramData, &notification); err != nil {
			ws.logger.WithError(err).Debug("Ignoring malformed signature notification")
			continue
		}
		if subID >= 0 && notification.Subscription != subID {
			continue
		}

		return notification.Result.Value.Err, nil
	}
}
