package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/vx-labs/shellstream/shell"
)

type client struct {
	host   string
	http   *http.Client
	dialer *websocket.Dialer
}

func newClient(host string) *client {
	return &client{
		host:   strings.TrimSuffix(host, "/"),
		http:   http.DefaultClient,
		dialer: websocket.DefaultDialer,
	}
}

func (c *client) do(ctx context.Context, method, path string, body url.Values, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(body.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := struct {
			Error string `json:"error"`
		}{}
		if json.NewDecoder(resp.Body).Decode(&apiErr) != nil || apiErr.Error == "" {
			return errors.New(resp.Status)
		}
		return errors.Errorf("%s: %s", resp.Status, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) Submit(ctx context.Context, command string) (shell.Info, error) {
	out := shell.Info{}
	return out, c.do(ctx, http.MethodPost, "/processes", url.Values{"cmd": []string{command}}, &out)
}

func (c *client) List(ctx context.Context) ([]shell.Info, error) {
	out := []shell.Info{}
	return out, c.do(ctx, http.MethodGet, "/processes", nil, &out)
}

func (c *client) Get(ctx context.Context, id string) (shell.Info, error) {
	out := shell.Info{}
	return out, c.do(ctx, http.MethodGet, "/processes/"+url.PathEscape(id), nil, &out)
}

func (c *client) Kill(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/processes/"+url.PathEscape(id)+"/kill", nil, nil)
}

func (c *client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/processes/"+url.PathEscape(id), nil, nil)
}

// Follow copies the process output to out until the process terminates. The
// termination line is written to status.
func (c *client) Follow(ctx context.Context, id string, out, status io.Writer) error {
	u, err := url.Parse(c.host + "/processes/" + url.PathEscape(id) + "/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return errors.Wrap(err, resp.Status)
		}
		return err
	}
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind == websocket.TextMessage {
			_, err = fmt.Fprintln(status, strings.TrimLeft(string(payload), "\n"))
			return err
		}
		if _, err := out.Write(payload); err != nil {
			return err
		}
	}
}

// Output copies the output captured so far to out.
func (c *client) Output(ctx context.Context, id string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/processes/"+url.PathEscape(id)+"/output?follow=false", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
