package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/facescan/pkg/scan"
)

// Watch subscribes to a dashboard's /ws/scan stream and calls fn for every
// view received. It returns nil when ctx is done or the server closes the
// stream normally.
func Watch(ctx context.Context, wsURL string, fn func(scan.View)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("web: dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("web: read: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}

		var v scan.View
		if err := json.Unmarshal(data, &v); err != nil {
			slog.Warn("skipping undecodable view", "error", err)
			continue
		}
		fn(v)
	}
}
