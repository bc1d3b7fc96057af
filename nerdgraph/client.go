package nerdgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/senpro-it/nr-chart-refresh-updater/tools"
)

const (
	requestTimeout  = 30 * time.Second
	defaultMaxPages = 1000
	cursorVariable  = "cursor"
)

// Variable is a bound query variable together with its declared GraphQL type,
// e.g. Var("guid", "EntityGuid!", guid).
type Variable struct {
	Name  string
	Type  string
	Value any
}

func Var(name string, typ string, value any) Variable {
	return Variable{Name: name, Type: typ, Value: value}
}

// Payload is the JSON body of a single NerdGraph POST.
type Payload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// BuildPayload prefixes the query body with the operation keyword and the
// declarations of every bound variable, in the order given.
func BuildPayload(query string, variables []Variable, mutation bool) Payload {
	op := "query"
	if mutation {
		op = "mutation"
	}

	values := make(map[string]any, len(variables))
	decls := make([]string, 0, len(variables))
	for _, v := range variables {
		decls = append(decls, fmt.Sprintf("$%s: %s", v.Name, v.Type))
		values[v.Name] = v.Value
	}

	spec := ""
	if len(decls) > 0 {
		spec = "(" + strings.Join(decls, ",") + ")"
	}

	return Payload{
		Query:     op + spec + query,
		Variables: values,
	}
}

type Client struct {
	apiKey     string
	httpClient *http.Client
	endpoints  map[Region]string
	headers    map[string]string
	maxPages   int
	logger     *log.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithEndpoint overrides the URL used for a region.
func WithEndpoint(region Region, url string) Option {
	return func(c *Client) {
		c.endpoints[region] = url
	}
}

// WithHeader adds a header to every request.
func WithHeader(name string, value string) Option {
	return func(c *Client) {
		c.headers[name] = value
	}
}

// WithMaxPages caps the number of pages fetched by one paginated call.
// Zero or a negative value removes the cap.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		c.maxPages = n
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		endpoints:  make(map[Region]string, len(defaultEndpoints)),
		headers:    map[string]string{},
		maxPages:   defaultMaxPages,
		logger:     log.New(io.Discard),
	}
	for region, url := range defaultEndpoints {
		c.endpoints[region] = url
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithPrefix("nerdgraph")
	return c
}

// Execute runs a query or mutation against the region's endpoint and returns
// the `data` object of every page in request order.
//
// When cursorPath is not empty a `$cursor: String` variable is bound on every
// request and the next cursor is read from each page at cursorPath. The loop
// ends when that value is null, empty or its final key is absent.
func (c *Client) Execute(
	ctx context.Context,
	region Region,
	query string,
	variables []Variable,
	mutation bool,
	cursorPath string,
) ([]map[string]any, error) {
	endpoint, ok := c.endpoints[region]
	if !ok {
		return nil, oops.
			In("nerdgraph.Execute").
			With("region", region).
			Errorf("no endpoint configured for region %q", region)
	}

	var cursor *string
	var pages []map[string]any

	for {
		bindings := append([]Variable(nil), variables...)
		if cursorPath != "" {
			var value any
			if cursor != nil {
				value = *cursor
			}
			bindings = append(bindings, Var(cursorVariable, "String", value))
		}

		data, err := c.post(ctx, endpoint, BuildPayload(query, bindings, mutation))
		if err != nil {
			return nil, err
		}
		pages = append(pages, data)

		if cursorPath == "" {
			return pages, nil
		}

		next, found := tools.GetNested(data, cursorPath)
		if !found {
			c.logger.Error("Cursor path not found in response", "path", cursorPath)
			return nil, newProtocolError(0, "", "expected value at path %s but found none", cursorPath)
		}
		if next == nil {
			return pages, nil
		}
		s, ok := next.(string)
		if !ok {
			c.logger.Error("Cursor is not a string", "path", cursorPath, "cursor", next)
			return nil, newProtocolError(0, "", "expected string cursor at path %s but found %T", cursorPath, next)
		}
		if s == "" {
			return pages, nil
		}
		if c.maxPages > 0 && len(pages) >= c.maxPages {
			c.logger.Error("Pagination limit reached", "path", cursorPath, "pages", len(pages))
			return nil, &PaginationExhaustedError{CursorPath: cursorPath, Pages: len(pages)}
		}
		cursor = tools.PtrOf(s)
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload Payload) (map[string]any, error) {
	oopsBuilder := oops.In("nerdgraph.post").With("endpoint", endpoint)

	if c.logger.GetLevel() <= log.DebugLevel {
		c.logger.Debug("Request payload", "payload", spew.Sdump(payload))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, oopsBuilder.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, oopsBuilder.Wrap(err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("GraphQL request failed", "err", err)
		return nil, newProtocolError(0, err.Error(), "GraphQL request failed")
	}
	defer res.Body.Close()

	reason := http.StatusText(res.StatusCode)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.logger.Error("GraphQL request failed", "status", res.StatusCode, "reason", reason)
		return nil, newProtocolError(
			res.StatusCode,
			reason,
			"GraphQL request failed with status: %d, reason: %s",
			res.StatusCode,
			reason,
		)
	}

	text, err := io.ReadAll(res.Body)
	if err != nil {
		c.logger.Error("Error reading GraphQL response", "err", err)
		return nil, newProtocolError(res.StatusCode, reason, "error reading GraphQL response: %v", err)
	}

	var response map[string]any
	decoder := json.NewDecoder(bytes.NewReader(text))
	decoder.UseNumber()
	if err := decoder.Decode(&response); err != nil {
		c.logger.Error("Unable to parse GraphQL response", "err", err)
		return nil, newProtocolError(res.StatusCode, reason, "error decoding GraphQL response: %v", err)
	}

	if c.logger.GetLevel() <= log.DebugLevel {
		c.logger.Debug("Response", "status", res.StatusCode, "body", spew.Sdump(response))
	}

	if errs, ok := response["errors"]; ok && errs != nil {
		messages := errorMessages(errs)
		for _, msg := range messages {
			c.logger.Error("GraphQL post error", "message", msg)
		}
		return nil, newProtocolError(
			res.StatusCode,
			reason,
			"GraphQL post error: %s",
			strings.Join(messages, ","),
		)
	}

	data, ok := response["data"].(map[string]any)
	if !ok {
		c.logger.Error("GraphQL response has no data object")
		return nil, newProtocolError(res.StatusCode, reason, "GraphQL response has no data object")
	}
	return data, nil
}

// errorMessages collects the `message` of every entry in a GraphQL `errors`
// value, tolerating entries of the wrong shape.
func errorMessages(errs any) []string {
	list, ok := errs.([]any)
	if !ok {
		return []string{fmt.Sprint(errs)}
	}
	return lo.Map(list, func(item any, _ int) string {
		if entry, ok := item.(map[string]any); ok {
			if msg, ok := entry["message"].(string); ok {
				return msg
			}
		}
		return fmt.Sprint(item)
	})
}
