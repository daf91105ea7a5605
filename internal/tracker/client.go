package tracker

import (
	"context"
	"fmt"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"
)

// Config holds task-platform credentials and workflow settings.
type Config struct {
	BaseURL    string
	Username   string
	APIToken   string
	ProjectKey string
	DoneStatus string // status a completed item transitions to
	OpenStatus string // status a reopened item transitions to
}

// Client wraps the task platform's API. Built without credentials it stays
// disconnected: Ready reports false and the sync engine skips it.
type Client struct {
	client     *jira.Client
	logger     *zap.Logger
	projectKey string
	doneStatus string
	openStatus string
	ready      bool
}

// NewClient creates a new tracker client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	doneStatus := cfg.DoneStatus
	if doneStatus == "" {
		doneStatus = "Done"
	}
	openStatus := cfg.OpenStatus
	if openStatus == "" {
		openStatus = "To Do"
	}

	c := &Client{
		logger:     logger,
		projectKey: cfg.ProjectKey,
		doneStatus: doneStatus,
		openStatus: openStatus,
	}

	if cfg.BaseURL == "" || cfg.APIToken == "" {
		logger.Warn("tracker credentials not configured, tracker integration disabled")
		return c, nil
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.APIToken,
	}
	client, err := jira.NewClient(tp.Client(), cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker client: %w", err)
	}

	c.client = client
	c.ready = true
	return c, nil
}

// Ready reports whether the client has credentials to reach the platform.
func (c *Client) Ready() bool {
	return c.ready
}

// Item is the subset of tracker item state the bridge cares about.
type Item struct {
	ID      string
	Summary string
	Status  string
	Done    bool
}

// GetItem retrieves a tracker item by id.
func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	if !c.ready {
		return nil, fmt.Errorf("tracker client not configured")
	}

	issue, _, err := c.client.Issue.GetWithContext(ctx, itemID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	item := &Item{
		ID:      issue.Key,
		Summary: issue.Fields.Summary,
	}
	if issue.Fields.Status != nil {
		item.Status = issue.Fields.Status.Name
		item.Done = strings.EqualFold(item.Status, c.doneStatus)
	}
	return item, nil
}

// UpdateItemCompletion transitions an item to the done or open status.
func (c *Client) UpdateItemCompletion(ctx context.Context, itemID string, completed bool) error {
	if !c.ready {
		return fmt.Errorf("tracker client not configured")
	}

	target := c.openStatus
	if completed {
		target = c.doneStatus
	}

	transitions, _, err := c.client.Issue.GetTransitionsWithContext(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to get transitions: %w", err)
	}

	var transitionID string
	for _, transition := range transitions {
		if strings.EqualFold(transition.To.Name, target) {
			transitionID = transition.ID
			break
		}
	}
	if transitionID == "" {
		return fmt.Errorf("transition to status %s not found", target)
	}

	if _, err := c.client.Issue.DoTransitionWithContext(ctx, itemID, transitionID); err != nil {
		return fmt.Errorf("failed to transition item: %w", err)
	}

	c.logger.Info("updated tracker item",
		zap.String("item_id", itemID),
		zap.Bool("completed", completed),
	)
	return nil
}

// AddComment appends a comment to an item.
func (c *Client) AddComment(ctx context.Context, itemID, comment string) error {
	if !c.ready {
		return fmt.Errorf("tracker client not configured")
	}

	_, _, err := c.client.Issue.AddCommentWithContext(ctx, itemID, &jira.Comment{Body: comment})
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}
