package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Bren2010/kamui/ledger"
	"github.com/Bren2010/kamui/pubkey"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	maxBodySize     = 1 << 20
	maxAirdrop      = 100 * ledger.LamportsPerSol
	defaultLogLimit = 100
)

type httpError struct {
	status int
	resp   ErrorResponse
}

func (e *httpError) Error() string { return e.resp.Error }

func badRequest(format string, args ...interface{}) error {
	return &httpError{http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf(format, args...)}}
}

type Handler struct {
	Ledger    *ledger.Ledger
	Sequencer *Sequencer
	Meta      MetaResponse
	Metrics   *Metrics
	Logger    *zap.Logger

	HomeRedirect string
}

// Router returns the API routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Home)
	r.HandleFunc("/v1/meta", h.handleAPI("meta", h.GetMeta)).Methods(http.MethodGet)
	r.HandleFunc("/v1/slot", h.handleAPI("slot", h.GetSlot)).Methods(http.MethodGet)
	r.HandleFunc("/v1/accounts/{key}", h.handleAPI("accounts", h.GetAccount)).Methods(http.MethodGet)
	r.HandleFunc("/v1/logs", h.handleAPI("logs", h.GetLogs)).Methods(http.MethodGet)
	r.HandleFunc("/v1/transactions", h.handleAPI("transactions", h.PostTransaction)).Methods(http.MethodPost)
	r.HandleFunc("/v1/airdrop", h.handleAPI("airdrop", h.PostAirdrop)).Methods(http.MethodPost)
	return r
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// handleAPI adapts a function returning a JSON-encodable response into an
// http.HandlerFunc, and records the request's outcome under `path`.
func (h *Handler) handleAPI(path string, fn func(*http.Request) (interface{}, error)) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		status, body := http.StatusOK, interface{}(nil)

		res, err := fn(req)
		if err != nil {
			var herr *httpError
			if errors.As(err, &herr) {
				status, body = herr.status, herr.resp
			} else {
				h.logger().Error("internal error",
					zap.String("path", req.URL.Path),
					zap.String("request_id", req.Header.Get("X-Request-Id")),
					zap.Error(err),
				)
				status, body = http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
			}
		} else {
			body = res
		}
		h.Metrics.observeRequest(path, status)

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(status)
		if err := json.NewEncoder(rw).Encode(body); err != nil {
			h.logger().Debug("failed to write response", zap.Error(err))
		}
	}
}

// Home redirects requests to a pre-configured URL, like the API documentation.
func (h *Handler) Home(rw http.ResponseWriter, req *http.Request) {
	if h.HomeRedirect == "" {
		fmt.Fprintln(rw, "Hi, I'm a kamui ledger server!")
		return
	}
	http.Redirect(rw, req, h.HomeRedirect, http.StatusSeeOther)
}

func (h *Handler) GetMeta(req *http.Request) (interface{}, error) {
	return h.Meta, nil
}

func (h *Handler) GetSlot(req *http.Request) (interface{}, error) {
	head, err := h.Ledger.Head()
	if err != nil {
		return nil, err
	}
	return SlotResponse{Slot: head.Slot, Timestamp: head.Timestamp, TxCount: head.TxCount, LogSize: head.LogSize}, nil
}

func (h *Handler) GetAccount(req *http.Request) (interface{}, error) {
	key, err := pubkey.Parse(mux.Vars(req)["key"])
	if err != nil {
		return nil, badRequest("invalid account key: %v", err)
	}
	return h.Ledger.GetAccount(key)
}

func (h *Handler) GetLogs(req *http.Request) (interface{}, error) {
	q := req.URL.Query()

	var since uint64
	if s := q.Get("since"); s != "" {
		var err error
		if since, err = strconv.ParseUint(s, 10, 64); err != nil {
			return nil, badRequest("invalid since parameter")
		}
	}
	limit := defaultLogLimit
	if s := q.Get("limit"); s != "" {
		var err error
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 || limit > ledger.MaxLogBatch {
			return nil, badRequest("limit must be between 1 and %d", ledger.MaxLogBatch)
		}
	}

	entries, err := h.Ledger.Logs(since, limit)
	if err != nil {
		return nil, err
	} else if entries == nil {
		entries = []ledger.LogEntry{}
	}
	return entries, nil
}

func decodeBody(req *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("malformed request body: %v", err)
	}
	return nil
}

func (h *Handler) PostTransaction(req *http.Request) (interface{}, error) {
	var body TransactionRequest
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	}
	tx, err := ledger.NewTransactionFrom(bytes.NewBuffer(body.Transaction))
	if err != nil {
		return nil, badRequest("malformed transaction: %v", err)
	} else if err := tx.Verify(); err != nil {
		return nil, badRequest("%v", err)
	}

	receipt, err := h.Sequencer.Submit(req.Context(), tx)
	var ierr *ledger.InstructionError
	if errors.As(err, &ierr) {
		return nil, &httpError{http.StatusBadRequest, ErrorResponse{
			Error:       ierr.Error(),
			Instruction: &ierr.Index,
			Receipt:     receipt,
		}}
	} else if errors.Is(err, ledger.ErrTransactionExpired) || errors.Is(err, ledger.ErrAlreadyProcessed) {
		return nil, badRequest("%v", err)
	} else if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (h *Handler) PostAirdrop(req *http.Request) (interface{}, error) {
	if !h.Meta.Airdrop {
		return nil, &httpError{http.StatusForbidden, ErrorResponse{Error: "airdrops are disabled"}}
	}
	var body AirdropRequest
	if err := decodeBody(req, &body); err != nil {
		return nil, err
	} else if body.Lamports == 0 || body.Lamports > maxAirdrop {
		return nil, badRequest("lamports must be between 1 and %d", uint64(maxAirdrop))
	}
	if err := h.Ledger.Airdrop(body.Pubkey, body.Lamports); err != nil {
		if errors.Is(err, ledger.ErrExecutableModified) || errors.Is(err, ledger.ErrArithmeticOverflow) {
			return nil, badRequest("%v", err)
		}
		return nil, err
	}
	return h.Ledger.GetAccount(body.Pubkey)
}
