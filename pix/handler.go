package pix

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pix-lifecycle/pix/application"
	"pix-lifecycle/pix/domain"

	"github.com/shopspring/decimal"
)

type Options struct {
	Issuer application.Issuer
	// Lookup resolve GET /pix/{token}.
	Lookup application.Lookup
	Stats  application.Stats
	// Store atende a listagem paginada (GET /pix).
	Store domain.Store
	// Dashboard nil responde 503 em /ws/dashboard.
	Dashboard domain.Subscriber
	// Auth nil rejeita todas as rotas do owner (fail closed).
	Auth OwnerResolver
	// PublicBaseURL prefixa o qr_code_url devolvido na criação.
	PublicBaseURL string
	// ClientKey nil usa o IP da conexão.
	ClientKey ClientKeyFunc
	// DashboardMaxClients <= 0 não limita as conexões do dashboard.
	DashboardMaxClients int
	Logger              *slog.Logger
}

type handler struct {
	opts Options
	log  *slog.Logger
}

// NewHandler monta as rotas HTTP do Pix.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Store == nil {
		opts.Store = opts.Stats.Store
	}
	if opts.ClientKey == nil {
		opts.ClientKey = ClientKeyFrom("", false)
	}
	h := &handler{opts: opts, log: opts.Logger}

	owner := RequireOwner(opts.Auth)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("POST /pix", owner(http.HandlerFunc(h.create)))
	mux.Handle("GET /pix", owner(http.HandlerFunc(h.list)))
	mux.Handle("GET /pix/stats", owner(http.HandlerFunc(h.stats)))
	mux.HandleFunc("GET /pix/{token}", h.resolve)
	mux.Handle("GET /ws/dashboard", DashboardHandler(opts.Dashboard, &opts.Stats, opts.DashboardMaxClients, opts.Logger))

	return accessLog(opts.Logger, mux)
}

type createRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFrom(r.Context())

	var body createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if body.Amount == nil {
		writeError(w, http.StatusUnprocessableEntity, "The amount field is required.")
		return
	}

	p, err := h.opts.Issuer.Issue(r.Context(), owner, *body.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createdBody{
		Message: msgCreated,
		Data: createdData{
			Token:     p.Token,
			Amount:    p.Amount.StringFixed(2),
			ExpiresAt: p.ExpiresAt,
			QRCodeURL: strings.TrimRight(h.opts.PublicBaseURL, "/") + "/pix/" + p.Token,
		},
	})
}

func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.opts.Lookup.Resolve(r.Context(), h.opts.ClientKey(r), r.PathValue("token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolvedBody{
		Message: statusMessage(res.Status()),
		Status:  res.Status(),
	})
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFrom(r.Context())
	req := domain.PageRequest{
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "per_page"),
	}

	page, err := h.opts.Store.ListByOwner(r.Context(), owner, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body := pageBody{
		Data:        make([]pixBody, 0, len(page.Items)),
		CurrentPage: page.Page,
		PerPage:     page.PageSize,
		Total:       page.Total,
		LastPage:    page.LastPage(),
	}
	for _, p := range page.Items {
		body.Data = append(body.Data, toPixBody(p))
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFrom(r.Context())
	snap, err := h.opts.Stats.Snapshot(r.Context(), owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// fail traduz os erros do domínio para status HTTP.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var throttled *domain.ThrottledError
	switch {
	case errors.As(err, &throttled):
		secs := int((throttled.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, http.StatusTooManyRequests, "Too Many Attempts.")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "PIX não encontrado")
	default:
		h.log.ErrorContext(r.Context(), "pix: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Server Error")
	}
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack é exigido pelo x/net/websocket, que faz type assertion direto no writer.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
