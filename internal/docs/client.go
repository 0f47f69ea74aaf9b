package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// defaultBaseURL is the production document API endpoint.
const defaultBaseURL = "https://docs.googleapis.com/v1"

// Client is an Editor over the document REST API. Token refresh is handled
// upstream; the client only attaches the bearer token it was given.
type Client struct {
	httpc   *http.Client
	baseURL string
	docID   string
	token   string
	logger  *zap.Logger
}

// NewClient creates a document client for docID.
func NewClient(docID, token string, logger *zap.Logger) *Client {
	return &Client{
		httpc:   &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		docID:   docID,
		token:   token,
		logger:  logger,
	}
}

// document mirrors the slice of the API document resource we read.
type document struct {
	Title string `json:"title"`
	Body  struct {
		Content []struct {
			EndIndex int `json:"endIndex"`
		} `json:"content"`
	} `json:"body"`
}

// EndIndex fetches the document and returns the insertion point for new
// content. The final structural element's end index includes the trailing
// newline nothing may be inserted after, hence the minus one.
func (c *Client) EndIndex(ctx context.Context) (int, error) {
	doc, err := c.getDocument(ctx)
	if err != nil {
		return 0, err
	}
	content := doc.Body.Content
	if len(content) == 0 {
		return 0, &DocumentError{Action: "read", Err: fmt.Errorf("document has no body content")}
	}
	return content[len(content)-1].EndIndex - 1, nil
}

// Apply submits the operation list as one batch update.
func (c *Client) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string]any{"requests": Requests(ops)})
	if err != nil {
		return &DocumentError{Action: "write", Err: err}
	}

	url := fmt.Sprintf("%s/documents/%s:batchUpdate", c.baseURL, c.docID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &DocumentError{Action: "write", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &DocumentError{Action: "write", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &DocumentError{
			Action: "write",
			Err:    fmt.Errorf("batch update rejected: %s: %s", resp.Status, bytes.TrimSpace(body)),
		}
	}
	return nil
}

// TestConnection reads the document and appends a timestamped plain test
// marker, proving both read and write access.
func (c *Client) TestConnection(ctx context.Context) bool {
	doc, err := c.getDocument(ctx)
	if err != nil {
		c.logger.Error("document connection test failed", zap.Error(err))
		return false
	}
	c.logger.Info("connected to document", zap.String("title", doc.Title))

	end, err := c.EndIndex(ctx)
	if err != nil {
		return false
	}
	marker := fmt.Sprintf("\n=== ARCHIVER TEST %s ===\n", time.Now().Format("15:04:05"))
	if err := c.Apply(ctx, []Op{InsertText{At: end, Text: marker}}); err != nil {
		c.logger.Error("document write test failed", zap.Error(err))
		return false
	}
	return true
}

func (c *Client) getDocument(ctx context.Context) (*document, error) {
	url := fmt.Sprintf("%s/documents/%s", c.baseURL, c.docID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DocumentError{Action: "read", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &DocumentError{Action: "read", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &DocumentError{Action: "read", Err: fmt.Errorf("get document: %s", resp.Status)}
	}

	var doc document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &DocumentError{Action: "read", Err: err}
	}
	return &doc, nil
}
