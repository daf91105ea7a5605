package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.board.example/v2"

// Config holds board platform credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	BaseURL      string
}

// Client talks to the whiteboard platform's REST API. A client built without
// an access token stays in the disconnected state: every call fails and
// Ready reports false, which the sync engine treats as a silent skip.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
	ready      bool
}

// NewClient creates a new board client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		logger:  logger,
		baseURL: baseURL,
	}

	if cfg.AccessToken == "" {
		logger.Warn("board credentials not configured, board integration disabled")
		c.httpClient = http.DefaultClient
		return c
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	c.httpClient = oauth2.NewClient(context.Background(), ts)
	c.httpClient.Timeout = 15 * time.Second
	c.ready = true
	return c
}

// Ready reports whether the client has credentials to reach the platform.
func (c *Client) Ready() bool {
	return c.ready
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.ready {
		return fmt.Errorf("board client not configured")
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("board API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("board API rate limit exceeded")
		case http.StatusUnauthorized:
			return fmt.Errorf("board authentication failed: invalid or expired access token")
		}
		return fmt.Errorf("board API error: %d - %s", resp.StatusCode, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// BoardInfo is the subset of board metadata the bridge cares about.
type BoardInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskWidget describes one checkbox widget created on a board.
type TaskWidget struct {
	ID        string
	TaskName  string
	Completed bool
}

type itemResponse struct {
	ID string `json:"id"`
}

// CreateBoard creates a board and returns its id.
func (c *Client) CreateBoard(ctx context.Context, name string) (string, error) {
	payload := map[string]any{
		"name": name,
		"policy": map[string]any{
			"permissionsPolicy": map[string]any{
				"collaborationToolsStartAccess": "all_editors",
			},
		},
	}
	var resp itemResponse
	if err := c.do(ctx, http.MethodPost, "/boards", payload, &resp); err != nil {
		return "", fmt.Errorf("failed to create board: %w", err)
	}

	c.logger.Info("created board", zap.String("board_id", resp.ID), zap.String("name", name))
	return resp.ID, nil
}

// CreateReportFrame creates the project report frame that receives task
// checkboxes and the mirrored communication log.
func (c *Client) CreateReportFrame(ctx context.Context, boardID, title string) (string, error) {
	payload := map[string]any{
		"data": map[string]any{
			"title":  title,
			"format": "custom",
			"width":  600,
			"height": 800,
		},
		"position": map[string]any{"x": 0, "y": 700},
	}
	var resp itemResponse
	if err := c.do(ctx, http.MethodPost, "/boards/"+boardID+"/frames", payload, &resp); err != nil {
		return "", fmt.Errorf("failed to create report frame: %w", err)
	}
	return resp.ID, nil
}

// CreateTaskWidgets creates one checkbox shape per task inside the report
// frame and returns the created widgets in input order.
func (c *Client) CreateTaskWidgets(ctx context.Context, boardID, frameID string, taskNames []string) ([]TaskWidget, error) {
	widgets := make([]TaskWidget, 0, len(taskNames))
	y := 300
	for _, name := range taskNames {
		payload := map[string]any{
			"data": map[string]any{
				"shape":   "rectangle",
				"content": FormatTaskContent(name, false),
			},
			"style": map[string]any{
				"fillColor":   "transparent",
				"borderColor": "#333333",
				"textAlign":   "left",
			},
			"position": map[string]any{"x": 50, "y": y},
			"parent":   map[string]any{"id": frameID},
		}
		var resp itemResponse
		if err := c.do(ctx, http.MethodPost, "/boards/"+boardID+"/shapes", payload, &resp); err != nil {
			return nil, fmt.Errorf("failed to create task widget %q: %w", name, err)
		}
		widgets = append(widgets, TaskWidget{ID: resp.ID, TaskName: name})
		y += 40
	}

	c.logger.Info("created task widgets",
		zap.String("board_id", boardID),
		zap.Int("count", len(widgets)),
	)
	return widgets, nil
}

// UpdateTaskWidget rewrites a checkbox widget to reflect the completion flag.
func (c *Client) UpdateTaskWidget(ctx context.Context, boardID, widgetID string, completed bool, taskName string) error {
	fill := "transparent"
	if completed {
		fill = "light_green"
	}
	payload := map[string]any{
		"data":  map[string]any{"content": FormatTaskContent(taskName, completed)},
		"style": map[string]any{"fillColor": fill},
	}
	if err := c.do(ctx, http.MethodPatch, "/boards/"+boardID+"/shapes/"+widgetID, payload, nil); err != nil {
		return fmt.Errorf("failed to update task widget: %w", err)
	}

	c.logger.Info("updated task widget",
		zap.String("widget_id", widgetID),
		zap.Bool("completed", completed),
	)
	return nil
}

// AddLogEntry appends a communication-log text item to the report frame.
func (c *Client) AddLogEntry(ctx context.Context, boardID, frameID, message, author string, at time.Time) error {
	entry := fmt.Sprintf("[%s] %s: %s", at.Format("2006-01-02 15:04"), author, message)
	payload := map[string]any{
		"data": map[string]any{"content": entry},
		"style": map[string]any{
			"color":    "#666666",
			"fontSize": 10,
		},
		"position": map[string]any{"x": 50, "y": 250},
		"parent":   map[string]any{"id": frameID},
	}
	if err := c.do(ctx, http.MethodPost, "/boards/"+boardID+"/texts", payload, nil); err != nil {
		return fmt.Errorf("failed to add log entry: %w", err)
	}
	return nil
}

// GetBoardInfo fetches board metadata. Used by the integration status API as
// a connectivity probe.
func (c *Client) GetBoardInfo(ctx context.Context, boardID string) (*BoardInfo, error) {
	var info BoardInfo
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID, nil, &info); err != nil {
		return nil, fmt.Errorf("failed to get board info: %w", err)
	}
	return &info, nil
}
