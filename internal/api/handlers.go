package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"librag/internal/domain"
	"librag/internal/library"
	"librag/internal/logging"
	"librag/internal/service"
)

// Indexer is the part of the index manager the API drives directly.
type Indexer interface {
	Refresh(ctx context.Context) error
	Generation() uint64
}

// Pinger reports store reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the dependencies for HTTP handlers.
type Handler struct {
	library *library.Manager
	rag     *service.RAGService
	index   Indexer
	store   Pinger
	logger  *slog.Logger
}

func NewHandler(lib *library.Manager, rag *service.RAGService, index Indexer, store Pinger, logger *slog.Logger) *Handler {
	logger = logging.Default(logger)
	return &Handler{library: lib, rag: rag, index: index, store: store, logger: logger.With("component", "api")}
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type contextResponse struct {
	Query   string `json:"query"`
	Context string `json:"context"`
}

type refreshResponse struct {
	Generation uint64 `json:"generation"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Generation uint64 `json:"generation"`
}

// HandleListBooks handles GET /books.
func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.library.Books(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if books == nil {
		books = []domain.Book{}
	}
	sendJSON(w, http.StatusOK, books)
}

// HandleGetBook handles GET /books/{id}.
func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	b, err := h.library.Book(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, b)
}

// HandleAddBook handles POST /books.
func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	var b domain.Book
	if !decode(w, r, &b) {
		return
	}
	added, err := h.library.AddBook(r.Context(), b)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, added)
}

// HandleEditBook handles PATCH /books/{id}.
func (h *Handler) HandleEditBook(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	var patch domain.BookPatch
	if !decode(w, r, &patch) {
		return
	}
	b, err := h.library.EditBook(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, b)
}

// HandleBorrow handles POST /books/{id}/borrow.
func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	h.circulate(w, r, h.library.Borrow)
}

// HandleReturn handles POST /books/{id}/return.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	h.circulate(w, r, h.library.Return)
}

func (h *Handler) circulate(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, domain.User) (domain.Transaction, error)) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	var user domain.User
	if !decode(w, r, &user) {
		return
	}
	tx, err := op(r.Context(), id, user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, tx)
}

// HandleListTransactions handles GET /transactions?limit=N.
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			sendJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	txs, err := h.library.Transactions(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	sendJSON(w, http.StatusOK, txs)
}

// HandleExportTransactions handles GET /transactions.csv.
func (h *Handler) HandleExportTransactions(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.library.ExportTransactionsCSV(r.Context(), &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write csv", "error", err, "request_id", RequestID(r.Context()))
	}
}

// HandleRefresh handles POST /index/refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.index.Refresh(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, refreshResponse{Generation: h.index.Generation()})
}

// HandleContext handles POST /query/context.
func (h *Handler) HandleContext(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	text, err := h.rag.Retrieve(r.Context(), req.Query, req.K)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, contextResponse{Query: req.Query, Context: text})
}

// HandleAnswer handles POST /query/answer.
func (h *Handler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	text, err := h.rag.Retrieve(r.Context(), req.Query, req.K)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ans, err := h.rag.Generate(r.Context(), req.Query, text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, service.Result{Query: req.Query, Context: text, Answer: ans})
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			sendJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "store unreachable", Generation: h.index.Generation()})
			return
		}
	}
	sendJSON(w, http.StatusOK, healthResponse{Status: "ok", Generation: h.index.Generation()})
}

// fail maps domain errors onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoCopiesAvailable):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidBook):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamFailure):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrInitialization):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestID(r.Context()))
	}
	sendJSON(w, status, errorResponse{Error: err.Error()})
}

func bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid book id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if !decode(w, r, &req) {
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return req, false
	}
	return req, true
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
