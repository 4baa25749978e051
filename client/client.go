// Package client is the HTTP client for the patchtrack API, used by the
// push-hook tooling and usable by CI systems posting checks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiBase = "/api/1.0"

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("client: not found")

// Client talks to one patchtrack instance. The zero http.Client is usable;
// set Token for authenticated operations.
type Client struct {
	http.Client
	Addr  string
	Token string
}

// Patch mirrors the patches resource payload.
type Patch struct {
	ID        int64     `json:"id"`
	Project   int64     `json:"project"`
	MsgID     string    `json:"msgid"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	Submitter int64     `json:"submitter"`
	Delegate  *int64    `json:"delegate,omitempty"`
	State     int64     `json:"state"`
	Hash      string    `json:"hash"`
	CommitRef string    `json:"commit_ref,omitempty"`
	Content   string    `json:"content,omitempty"`
	Diff      string    `json:"diff,omitempty"`
}

// Project mirrors the projects resource payload.
type Project struct {
	ID       int64  `json:"id"`
	LinkName string `json:"linkname"`
	Name     string `json:"name"`
	ListID   string `json:"listid"`
}

// Check mirrors the checks resource payload.
type Check struct {
	ID          int64  `json:"id"`
	Patch       int64  `json:"patch"`
	State       string `json:"state"`
	TargetURL   string `json:"target_url"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

// PatchUpdate is the body of a patch update. Nil fields are left alone.
type PatchUpdate struct {
	State     *int64  `json:"state,omitempty"`
	StateName *string `json:"state_name,omitempty"`
	Delegate  *int64  `json:"delegate,omitempty"`
	CommitRef *string `json:"commit_ref,omitempty"`
}

type envelope struct {
	Count   int             `json:"count"`
	Results json.RawMessage `json:"results"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Addr+path, reqBody)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Token "+c.Token)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("client: %s %s: %s: %s", method, path,
			resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding response: %w", err)
	}

	return nil
}

// Ping checks the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Addr+"/ping", nil)
	if err != nil {
		return err
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if string(body) != "pong" {
		return fmt.Errorf("client: unexpected ping reply %q", body)
	}

	return nil
}

// Patch fetches a patch by id.
func (c *Client) Patch(ctx context.Context, id int64) (*Patch, error) {
	var p Patch
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/patches/%d/", apiBase, id), nil, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// PatchByHash fetches the patch with the given content hash.
func (c *Client) PatchByHash(ctx context.Context, h string) (*Patch, error) {
	var env envelope
	path := apiBase + "/patches/?hash=" + url.QueryEscape(h)
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Count == 0 {
		return nil, ErrNotFound
	}

	var patches []*Patch
	if err := json.Unmarshal(env.Results, &patches); err != nil {
		return nil, fmt.Errorf("client: decoding patches: %w", err)
	}
	if len(patches) == 0 {
		return nil, ErrNotFound
	}

	return patches[0], nil
}

// UpdatePatch applies a partial update to a patch.
func (c *Client) UpdatePatch(ctx context.Context, id int64, u PatchUpdate) (*Patch, error) {
	var p Patch
	path := fmt.Sprintf("%s/patches/%d/", apiBase, id)
	if err := c.do(ctx, http.MethodPatch, path, u, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// CreateCheck posts a check result against a patch.
func (c *Client) CreateCheck(ctx context.Context, patchID int64, check Check) (*Check, error) {
	var out Check
	path := fmt.Sprintf("%s/patches/%d/checks/", apiBase, patchID)
	if err := c.do(ctx, http.MethodPost, path, check, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]*Project, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, apiBase+"/projects/", nil, &env); err != nil {
		return nil, err
	}

	var projects []*Project
	if err := json.Unmarshal(env.Results, &projects); err != nil {
		return nil, fmt.Errorf("client: decoding projects: %w", err)
	}

	return projects, nil
}

// Mbox fetches the mbox rendering of a patch.
func (c *Client) Mbox(ctx context.Context, id int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s%s/patches/%d/mbox/", c.Addr, apiBase, id), nil)
	if err != nil {
		return "", err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Token "+c.Token)
	}

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("client: fetching mbox: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}
