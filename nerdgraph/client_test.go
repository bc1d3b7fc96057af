package nerdgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockNerdGraph starts a server that answers every POST with the result of
// respond, recording the decoded payloads it received.
func newMockNerdGraph(t *testing.T, respond func(call int, p Payload, w http.ResponseWriter)) (*httptest.Server, *[]Payload) {
	t.Helper()
	var received []Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var p Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		received = append(received, p)
		respond(len(received), p, w)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprint(w, body)
}

func newTestClient(srv *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{WithEndpoint(RegionUS, srv.URL)}, opts...)
	return NewClient("test-key", opts...)
}

func TestBuildPayload(t *testing.T) {
	t.Run("query with variables", func(t *testing.T) {
		p := BuildPayload("{ actor { user { name } } }", []Variable{
			Var("guid", "EntityGuid!", "abc"),
			Var("cursor", "String", nil),
		}, false)

		assert.Equal(t, "query($guid: EntityGuid!,$cursor: String){ actor { user { name } } }", p.Query)
		assert.Equal(t, map[string]any{"guid": "abc", "cursor": nil}, p.Variables)
	})

	t.Run("mutation without variables", func(t *testing.T) {
		p := BuildPayload("{ x }", nil, true)

		assert.Equal(t, "mutation{ x }", p.Query)
		assert.NotNil(t, p.Variables)
		assert.Empty(t, p.Variables)
	})
}

func TestExecuteSinglePage(t *testing.T) {
	srv, received := newMockNerdGraph(t, func(_ int, _ Payload, w http.ResponseWriter) {
		writeJSON(w, `{"data": {"actor": {"user": {"name": "jane"}}}}`)
	})

	pages, err := newTestClient(srv).Execute(context.Background(), RegionUS, "{ actor { user { name } } }", nil, false, "")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, map[string]any{"user": map[string]any{"name": "jane"}}, pages[0]["actor"])

	require.Len(t, *received, 1)
	_, hasCursor := (*received)[0].Variables["cursor"]
	assert.False(t, hasCursor)
}

func TestExecutePagination(t *testing.T) {
	cursors := []string{`"c1"`, `"c2"`, `null`}
	srv, received := newMockNerdGraph(t, func(call int, _ Payload, w http.ResponseWriter) {
		writeJSON(w, fmt.Sprintf(`{"data": {"page": %d, "results": {"nextCursor": %s}}}`, call, cursors[call-1]))
	})

	pages, err := newTestClient(srv).Execute(
		context.Background(),
		RegionUS,
		"{ results }",
		[]Variable{Var("query", "String!", "type = 'DASHBOARD'")},
		false,
		"results.nextCursor",
	)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, page := range pages {
		assert.Equal(t, json.Number(fmt.Sprint(i+1)), page["page"])
	}

	require.Len(t, *received, 3)
	assert.Nil(t, (*received)[0].Variables["cursor"])
	assert.Equal(t, "c1", (*received)[1].Variables["cursor"])
	assert.Equal(t, "c2", (*received)[2].Variables["cursor"])
	assert.Equal(t, "query($query: String!,$cursor: String){ results }", (*received)[0].Query)
}

func TestExecuteEmptyCursorEndsPagination(t *testing.T) {
	srv, _ := newMockNerdGraph(t, func(_ int, _ Payload, w http.ResponseWriter) {
		writeJSON(w, `{"data": {"results": {"nextCursor": ""}}}`)
	})

	pages, err := newTestClient(srv).Execute(context.Background(), RegionUS, "{ results }", nil, false, "results.nextCursor")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestExecuteMissingCursorKeyEndsPagination(t *testing.T) {
	cursors := []string{`"nextCursor": "c1",`, ``}
	srv, received := newMockNerdGraph(t, func(call int, _ Payload, w http.ResponseWriter) {
		writeJSON(w, fmt.Sprintf(`{"data": {"results": {%s "entities": []}}}`, cursors[call-1]))
	})

	pages, err := newTestClient(srv).Execute(context.Background(), RegionUS, "{ results }", nil, false, "results.nextCursor")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Len(t, *received, 2)
}

func TestExecuteSingleMissingCursorKey(t *testing.T) {
	srv, _ := newMockNerdGraph(t, func(_ int, _ Payload, w http.ResponseWriter) {
		writeJSON(w, `{"data": {"results": {"entities": []}}}`)
	})

	pages, err := newTestClient(srv).Execute(context.Background(), RegionUS, "{ results }", nil, false, "results.nextCursor")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestExecuteCursorPathNotFound(t *testing.T) {
	srv, _ := newMockNerdGraph(t, func(_ int, _ Payload, w http.ResponseWriter) {
		writeJSON(w, `{"data": {"actor": {}}}`)
	})

	_, err := newTestClient(srv).Execute(context.Background(), RegionUS, "{ results }", nil, false, "results.nextCursor")

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "results.nextCursor")
}

func TestExecutePaginationExhausted(t *testing.T) {
	srv, received := newMockNerdGraph(t, func(call int, _ Payload, w http.ResponseWriter) {
		writeJSON(w, fmt.Sprintf(`{"data": {"results": {"nextCursor": "c%d"}}}`, call))
	})

	_, err := newTestClient(srv, WithMaxPages(2)).Execute(context.Background(), RegionUS, "{ results }", nil, false, "results.nextCursor")

	var perr *PaginationExhaustedError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 2, perr.Pages)
	assert.Len(t, *received, 2)
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "errors with status 200",
			status:     http.StatusOK,
			body:       `{"errors": [{"message": "x"}]}`,
			wantStatus: http.StatusOK,
			wantMsg:    "GraphQL post error: x",
		},
		{
			name:       "errors take precedence over data",
			status:     http.StatusOK,
			body:       `{"data": {"actor": {}}, "errors": [{"message": "a"}, {"message": "b"}]}`,
			wantStatus: http.StatusOK,
			wantMsg:    "GraphQL post error: a,b",
		},
		{
			name:       "non-2xx status",
			status:     http.StatusUnauthorized,
			body:       `{}`,
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "status: 401",
		},
		{
			name:       "malformed body",
			status:     http.StatusOK,
			body:       `not json`,
			wantStatus: http.StatusOK,
			wantMsg:    "error decoding GraphQL response",
		},
		{
			name:       "missing data",
			status:     http.StatusOK,
			body:       `{}`,
			wantStatus: http.StatusOK,
			wantMsg:    "no data object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newMockNerdGraph(t, func(_ int, _ Payload, w http.ResponseWriter) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			})

			pages, err := newTestClient(srv).Execute(context.Background(), RegionUS, "{ actor }", nil, false, "")
			assert.Nil(t, pages)

			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantStatus, perr.Status)
			assert.Contains(t, perr.Error(), tt.wantMsg)
		})
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient("test-key", WithEndpoint(RegionEU, url))
	_, err := client.Execute(context.Background(), RegionEU, "{ actor }", nil, false, "")

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.Status)
	assert.NotEmpty(t, perr.Reason)
}

func TestExecuteUnknownRegion(t *testing.T) {
	_, err := NewClient("test-key").Execute(context.Background(), Region("APAC"), "{ actor }", nil, false, "")
	require.Error(t, err)

	var perr *ProtocolError
	assert.False(t, errors.As(err, &perr))
}

func TestParseRegion(t *testing.T) {
	for in, want := range map[string]Region{"": RegionUS, "us": RegionUS, "EU": RegionEU, " eu ": RegionEU} {
		got, err := ParseRegion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRegion("apac")
	assert.Error(t, err)
}
