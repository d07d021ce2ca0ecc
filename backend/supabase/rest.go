package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/la5nta/memorymap/backend"
)

func filterQuery(columns []string, filters []backend.Filter) url.Values {
	q := url.Values{}
	if columns != nil {
		q.Set("select", strings.Join(columns, ","))
	}
	for _, f := range filters {
		q.Add(f.Column, "eq."+f.Value)
	}
	return q
}

func tablePath(table string) string { return "/rest/v1/" + url.PathEscape(table) }

func (c *Client) Select(ctx context.Context, table string, columns []string, filters []backend.Filter, dst interface{}) error {
	if columns == nil {
		columns = []string{"*"}
	}
	req, err := c.newRequest(ctx, http.MethodGet, tablePath(table), filterQuery(columns, filters), nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *Client) Insert(ctx context.Context, table string, row interface{}, dst interface{}) error {
	req, err := c.newRequest(ctx, http.MethodPost, tablePath(table), nil, row)
	if err != nil {
		return err
	}
	if dst != nil {
		req.Header.Set("Prefer", "return=representation")
	} else {
		req.Header.Set("Prefer", "return=minimal")
	}
	return c.do(req, dst)
}

func (c *Client) Update(ctx context.Context, table string, patch interface{}, filters []backend.Filter) error {
	req, err := c.newRequest(ctx, http.MethodPatch, tablePath(table), filterQuery(nil, filters), patch)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")
	return c.do(req, nil)
}

func (c *Client) Delete(ctx context.Context, table string, filters []backend.Filter) error {
	req, err := c.newRequest(ctx, http.MethodDelete, tablePath(table), filterQuery(nil, filters), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}
