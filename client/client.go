// Package client implements an HTTP client for kamui-server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Bren2010/kamui/api"
	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Error is returned when the server answers with a non-2xx status.
type Error struct {
	Status  int
	Message string
	// Set when a transaction was executed and one of its instructions failed.
	Instruction *int
	Receipt     *ledger.Receipt
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	base string
	hc   *http.Client
}

// New returns a client for the server at `base`, like
// "http://localhost:8080". If hc is nil, a client with a 30 second timeout
// is used.
func New(base string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "parsing server url")
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme: %q", u.Scheme)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimSuffix(base, "/"), hc: hc}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || parsed.Error == "" {
			parsed.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{
			Status:      resp.StatusCode,
			Message:     parsed.Error,
			Instruction: parsed.Instruction,
			Receipt:     parsed.Receipt,
		}
	}
	if out == nil {
		return nil
	} else if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding response from %s", path)
	}
	return nil
}

func (c *Client) Meta(ctx context.Context) (*api.MetaResponse, error) {
	out := &api.MetaResponse{}
	if err := c.do(ctx, http.MethodGet, "/v1/meta", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Head(ctx context.Context) (*api.SlotResponse, error) {
	out := &api.SlotResponse{}
	if err := c.do(ctx, http.MethodGet, "/v1/slot", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Slot(ctx context.Context) (uint64, error) {
	head, err := c.Head(ctx)
	if err != nil {
		return 0, err
	}
	return head.Slot, nil
}

func (c *Client) GetAccount(ctx context.Context, key pubkey.Pubkey) (*ledger.Account, error) {
	out := &ledger.Account{}
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+key.String(), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Logs(ctx context.Context, since uint64, limit int) ([]ledger.LogEntry, error) {
	q := url.Values{}
	q.Set("since", fmt.Sprint(since))
	if limit > ledger.MaxLogBatch {
		limit = ledger.MaxLogBatch
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}

	var out []ledger.LogEntry
	if err := c.do(ctx, http.MethodGet, "/v1/logs?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitTransaction sends a signed transaction and waits for it to be
// executed. If execution fails, the receipt is returned along with an *Error.
func (c *Client) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error) {
	buf := &bytes.Buffer{}
	if err := tx.Marshal(buf); err != nil {
		return nil, err
	}
	out := &ledger.Receipt{}
	err := c.do(ctx, http.MethodPost, "/v1/transactions", api.TransactionRequest{Transaction: buf.Bytes()}, out)
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			return cerr.Receipt, err
		}
		return nil, err
	}
	return out, nil
}

// Airdrop asks the server to credit `lamports` to `key`.
func (c *Client) Airdrop(ctx context.Context, key pubkey.Pubkey, lamports uint64) error {
	return c.do(ctx, http.MethodPost, "/v1/airdrop", api.AirdropRequest{Pubkey: key, Lamports: lamports}, nil)
}
