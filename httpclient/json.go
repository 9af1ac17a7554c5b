package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
)

// DecodeJSON decodes resp's body into T. An empty body yields the zero value.
func DecodeJSON[T any](resp *Response) (T, error) {
	var out T
	if resp == nil || len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("decode %T response: %w", out, err)
	}
	return out, nil
}

func decodeResult[T any](resp *Response, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeJSON[T](resp)
}

// GetJSON performs a GET and decodes the JSON body into T.
func GetJSON[T any](ctx context.Context, c Client, url string, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Get(ctx, url, opts...))
}

// PostJSON performs a POST and decodes the JSON body into T.
func PostJSON[T any](ctx context.Context, c Client, url string, body any, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Post(ctx, url, body, opts...))
}

// PutJSON performs a PUT and decodes the JSON body into T.
func PutJSON[T any](ctx context.Context, c Client, url string, body any, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Put(ctx, url, body, opts...))
}

// PatchJSON performs a PATCH and decodes the JSON body into T.
func PatchJSON[T any](ctx context.Context, c Client, url string, body any, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Patch(ctx, url, body, opts...))
}

// DeleteJSON performs a DELETE and decodes the JSON body into T.
func DeleteJSON[T any](ctx context.Context, c Client, url string, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Delete(ctx, url, opts...))
}
