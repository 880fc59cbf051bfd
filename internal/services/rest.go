// PostgREST implementation of [store.Store]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/marquee/internal/store"
)

const restPrefix = "/rest/v1/"

// RESTStore talks to a PostgREST endpoint.
type RESTStore struct {
	client *Client
}

// NewRESTStore creates a [RESTStore] on top of c.
func NewRESTStore(c *Client) *RESTStore {
	return &RESTStore{client: c}
}

// restError is the JSON error body PostgREST sends on non-2xx responses.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (s *RESTStore) Select(ctx context.Context, c store.Collection, q store.Query) ([]store.Row, error) {
	if err := q.Validate(c); err != nil {
		return nil, err
	}

	params := filters(q)
	params.Set("select", "*")
	if q.Order != nil {
		dir := "asc"
		if q.Order.Descending {
			dir = "desc"
		}
		params.Set("order", q.Order.Column+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	resp, err := s.do(ctx, http.MethodGet, c, params, nil)
	if err != nil {
		return nil, err
	}

	var rows []store.Row
	if err := resp.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *RESTStore) Insert(ctx context.Context, c store.Collection, rec store.Row) error {
	if err := store.ValidateRow(c, rec); err != nil {
		return err
	}
	_, err := s.do(ctx, http.MethodPost, c, nil, rec)
	return err
}

// Delete refuses a query without filters rather than wiping the collection.
func (s *RESTStore) Delete(ctx context.Context, c store.Collection, q store.Query) error {
	if err := q.Validate(c); err != nil {
		return err
	}
	if len(q.Where) == 0 {
		return fmt.Errorf("%w: delete from %s without a filter", store.ErrInvalidQuery, c)
	}
	_, err := s.do(ctx, http.MethodDelete, c, filters(q), nil)
	return err
}

func (s *RESTStore) do(ctx context.Context, method string, c store.Collection, params url.Values, body any) (*APIResponse, error) {
	header := http.Header{}
	if method != http.MethodGet {
		header.Set("Prefer", "return=minimal")
	}

	resp, err := s.client.Do(ctx, method, restPrefix+string(c), params, body, header)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &store.Error{Code: store.CodeNetwork, Message: "network request failed", Err: err}
	}
	if !resp.OK() {
		return nil, responseError(resp)
	}
	return resp, nil
}

func responseError(resp *APIResponse) error {
	var body restError
	if err := resp.Decode(&body); err != nil || body.Message == "" {
		return store.NewError(body.Code, fmt.Sprintf("request failed with status %d", resp.StatusCode))
	}
	return store.NewError(body.Code, body.Message)
}

func filters(q store.Query) url.Values {
	params := url.Values{}
	for _, cond := range q.Where {
		if cond.Value == nil {
			params.Add(cond.Column, "is.null")
			continue
		}
		params.Add(cond.Column, "eq."+formatValue(cond.Value))
	}
	return params
}

func formatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
