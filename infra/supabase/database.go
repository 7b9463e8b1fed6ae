package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// From starts a PostgREST query on a table or view.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table}
}

// QueryBuilder builds PostgREST queries.
type QueryBuilder struct {
	client  *Client
	table   string
	columns string
	filters [][2]string
	orders  []string
	limit   int
	offset  int
	count   string
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

func (q *QueryBuilder) filter(column, op string, value any) *QueryBuilder {
	if t, ok := value.(time.Time); ok {
		value = t.UTC().Format(time.RFC3339Nano)
	}
	q.filters = append(q.filters, [2]string{column, fmt.Sprintf("%s.%v", op, value)})
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder { return q.filter(column, "eq", value) }

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return q.filter(column, "neq", value)
}

// Gt adds a greater-than filter.
func (q *QueryBuilder) Gt(column string, value any) *QueryBuilder { return q.filter(column, "gt", value) }

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return q.filter(column, "gte", value)
}

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder { return q.filter(column, "lt", value) }

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return q.filter(column, "lte", value)
}

// ILike adds a case-insensitive LIKE filter; use * as the wildcard.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.filter(column, "ilike", pattern)
}

// Is adds an IS filter (null, true, false).
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder { return q.filter(column, "is", value) }

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	return q.filter(column, "in", "("+strings.Join(values, ",")+")")
}

// Or adds a disjunction, e.g. "title.ilike.*x*,description.ilike.*x*".
func (q *QueryBuilder) Or(expr string) *QueryBuilder {
	q.filters = append(q.filters, [2]string{"or", "(" + expr + ")"})
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Offset sets the OFFSET.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// Count requests a total row count (exact, planned, estimated).
func (q *QueryBuilder) Count(countType string) *QueryBuilder {
	q.count = countType
	return q
}

// Execute runs a SELECT.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	req, err := q.client.newJSONRequest(ctx, http.MethodGet, q.url(true), nil)
	if err != nil {
		return nil, err
	}
	if q.count != "" {
		req.Header.Set("Prefer", "count="+q.count)
	}
	return q.client.do("select "+q.table, q.client.httpClient, req)
}

// ExecuteInto runs a SELECT and decodes the rows into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest any) error {
	resp, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if err := resp.JSON(dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.table, err)
	}
	return nil
}

// ExecuteInsert inserts data and returns the created rows.
func (q *QueryBuilder) ExecuteInsert(ctx context.Context, data any) (*Response, error) {
	req, err := q.client.newJSONRequest(ctx, http.MethodPost, q.url(false), data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do("insert "+q.table, q.client.httpClient, req)
}

// ExecuteUpsert inserts data, merging rows that collide on onConflict.
func (q *QueryBuilder) ExecuteUpsert(ctx context.Context, data any, onConflict string) (*Response, error) {
	reqURL := q.url(false)
	if onConflict != "" {
		reqURL = appendQuery(reqURL, "on_conflict", onConflict)
	}
	req, err := q.client.newJSONRequest(ctx, http.MethodPost, reqURL, data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")
	return q.client.do("upsert "+q.table, q.client.httpClient, req)
}

// ExecuteUpdate patches the filtered rows and returns them.
func (q *QueryBuilder) ExecuteUpdate(ctx context.Context, data any) (*Response, error) {
	req, err := q.client.newJSONRequest(ctx, http.MethodPatch, q.url(false), data)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do("update "+q.table, q.client.httpClient, req)
}

// ExecuteDelete deletes the filtered rows and returns them.
func (q *QueryBuilder) ExecuteDelete(ctx context.Context) (*Response, error) {
	req, err := q.client.newJSONRequest(ctx, http.MethodDelete, q.url(false), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do("delete "+q.table, q.client.httpClient, req)
}

func (q *QueryBuilder) url(read bool) string {
	params := url.Values{}
	if read && q.columns != "" {
		params.Set("select", q.columns)
	}
	for _, f := range q.filters {
		params.Add(f[0], f[1])
	}
	if read {
		if len(q.orders) > 0 {
			params.Set("order", strings.Join(q.orders, ","))
		}
		if q.limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", q.limit))
		}
		if q.offset > 0 {
			params.Set("offset", fmt.Sprintf("%d", q.offset))
		}
	}
	reqURL := q.client.restURL + "/" + url.PathEscape(q.table)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return reqURL
}

func appendQuery(reqURL, key, value string) string {
	sep := "?"
	if strings.Contains(reqURL, "?") {
		sep = "&"
	}
	return reqURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}

// RPC calls a Postgres function exposed by PostgREST.
func (c *Client) RPC(ctx context.Context, fn string, params any) (*Response, error) {
	if params == nil {
		params = map[string]any{}
	}
	req, err := c.newJSONRequest(ctx, http.MethodPost, c.restURL+"/rpc/"+url.PathEscape(fn), params)
	if err != nil {
		return nil, err
	}
	return c.do("rpc "+fn, c.httpClient, req)
}
