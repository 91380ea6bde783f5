package simulate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/normalize"
)

type client struct {
	base string
	http *http.Client
}

func (c *client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *client) connect(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/participants/"+id, nil, http.StatusNoContent, nil)
}

func (c *client) disconnect(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/participants/"+id, nil, http.StatusNoContent, nil)
}

func (c *client) send(ctx context.Context, ev normalize.RawEvent) error {
	return c.do(ctx, http.MethodPost, "/events", ev, http.StatusAccepted, nil)
}

func (c *client) view(ctx context.Context, id string) (model.ParticipantView, error) {
	var v model.ParticipantView
	err := c.do(ctx, http.MethodGet, "/participants/"+id, nil, http.StatusOK, &v)
	return v, err
}
