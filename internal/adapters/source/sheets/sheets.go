// Package sheets reads workbooks from the Google Sheets API. A source id is
// a spreadsheet id and a section is a sheet title.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/pkg/logger"
)

// Client is a source.Source backed by the Sheets API.
type Client struct {
	svc  *gsheets.Service
	log  logger.Logger
	opts []option.ClientOption
}

// Option configures a Client.
type Option func(*Client)

// WithCredentialsFile authenticates with a service account key file.
func WithCredentialsFile(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.opts = append(c.opts, option.WithCredentialsFile(path))
		}
	}
}

// WithAPIKey authenticates with an API key. Only public sheets are
// readable this way.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key != "" {
			c.opts = append(c.opts, option.WithAPIKey(key))
		}
	}
}

// WithClientOptions passes raw client options, e.g. a custom endpoint.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.opts = append(c.opts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Client.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{log: logger.Get()}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("sheets")
	svc, err := gsheets.NewService(ctx, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	c.svc = svc
	return c, nil
}

// CheckCredentialsFile fails early when a configured key file is missing.
func CheckCredentialsFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("service account key not readable at %s: %w", path, err)
	}
	return nil
}

// QuoteRange turns a sheet title into an A1 range covering the whole sheet.
func QuoteRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// ReadTable implements source.Source.
func (c *Client) ReadTable(ctx context.Context, sourceID, section string) ([][]any, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, source.ErrEmptySourceID
	}
	resp, err := c.svc.Spreadsheets.Values.Get(sourceID, QuoteRange(section)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, c.translate(ctx, err, sourceID, section)
	}
	c.log.Debug(ctx, "sheet values read",
		logger.String("spreadsheet", sourceID),
		logger.String("sheet", section),
		logger.Int("rows", len(resp.Values)),
	)
	return resp.Values, nil
}

// ListSections implements source.Source.
func (c *Client) ListSections(ctx context.Context, sourceID string) ([]string, error) {
	if strings.TrimSpace(sourceID) == "" {
		return nil, source.ErrEmptySourceID
	}
	ss, err := c.svc.Spreadsheets.Get(sourceID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, c.translate(ctx, err, sourceID, "")
	}
	out := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			out = append(out, sh.Properties.Title)
		}
	}
	return out, nil
}

func (c *Client) translate(ctx context.Context, err error, sourceID, section string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		c.log.Debug(ctx, "sheets api error",
			logger.String("spreadsheet", sourceID),
			logger.String("sheet", section),
			logger.Int("status", gerr.Code),
			logger.String("message", gerr.Message),
		)
		if gerr.Code == http.StatusNotFound || gerr.Code == http.StatusBadRequest {
			return fmt.Errorf("%w: %s %q: %s", source.ErrNotFound, sourceID, section, gerr.Message)
		}
	}
	return fmt.Errorf("sheets read %s %q: %w", sourceID, section, err)
}
