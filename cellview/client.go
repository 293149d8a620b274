package cellview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DRuggeri/cellwatch/cell"
	"github.com/DRuggeri/cellwatch/screens"
	"github.com/DRuggeri/cellwatch/watchers/common"
	"github.com/gorilla/websocket"
)

type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %s: %w", baseURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %s has no host", baseURL)
	}

	wsScheme := "ws"
	if u.Scheme == "https" {
		wsScheme = "wss"
	}

	return &Client{
		baseURL:    fmt.Sprintf("%s://%s", u.Scheme, u.Host),
		wsURL:      fmt.Sprintf("%s://%s%s", wsScheme, u.Host, screens.Cells.Path()),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With("operation", "cellview"),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code from %s: %d", path, resp.StatusCode)
	}
	return resp, nil
}

// Resume asks the daemon to re-check permissions and scan.
func (c *Client) Resume(ctx context.Context) error {
	resp, err := c.post(ctx, "/resume", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Toggle sets whether a cell is shown as an active connection.
func (c *Client) Toggle(ctx context.Context, cellID int64, active bool) (cell.Record, error) {
	resp, err := c.post(ctx, "/cells/active", url.Values{
		"cellId": {strconv.FormatInt(cellID, 10)},
		"active": {strconv.FormatBool(active)},
	})
	if err != nil {
		return cell.Record{}, err
	}
	defer resp.Body.Close()

	var rec cell.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return cell.Record{}, fmt.Errorf("failed to decode cell: %w", err)
	}
	return rec, nil
}

// Watch streams status snapshots until ctx is done or the server goes away.
func (c *Client) Watch(ctx context.Context, statusChan chan<- common.CellStatus) error {
	c.log.Debug("connecting to WebSocket", "url", c.wsURL)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var status common.CellStatus
		if err := conn.ReadJSON(&status); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("WebSocket closed normally")
				return nil
			}
			return fmt.Errorf("failed to read WebSocket message: %w", err)
		}

		c.log.Debug("received status update", "permission", status.Permission, "cells", len(status.Cells))
		select {
		case <-ctx.Done():
			return nil
		case statusChan <- status:
		}
	}
}
