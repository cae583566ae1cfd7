package push

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/richardliu001/board-service/internal/model"
)

var errNoGateway = errors.New("connection has no gateway")

// GatewayClient posts frames to the server process that holds the websocket,
// at {gateway}/connections/{id} where gateway is the one recorded on the
// connection. baseURL is used only for connections saved without one. 410 Gone
// is the stale-connection signal.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

func NewGatewayClient(baseURL string, client *http.Client) *GatewayClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GatewayClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (g *GatewayClient) Send(ctx context.Context, target model.Connection, payload []byte) error {
	connectionID := target.ConnectionID
	base := g.baseURL
	if target.Gateway != "" {
		base = strings.TrimRight(target.Gateway, "/")
	}
	if base == "" {
		return fmt.Errorf("post to connection %s: %w", connectionID, errNoGateway)
	}
	endpoint := base + "/connections/" + url.PathEscape(connectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to connection %s: %w", connectionID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrStaleConnection
	case resp.StatusCode >= 300:
		return fmt.Errorf("post to connection %s: status %d", connectionID, resp.StatusCode)
	}
	return nil
}
