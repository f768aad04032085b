package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/cors"

	"github.com/kaiseki-nlp/kaiseki"
	"github.com/kaiseki-nlp/kaiseki/dictionary"
	"github.com/kaiseki-nlp/kaiseki/internal/config"
)

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	cacheSize      int
	allowedOrigins []string
	defaultMode    kaiseki.SplitMode
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   64 << 10,
		workers:        8,
		requestTimeout: 10 * time.Second,
		cacheSize:      1024,
		allowedOrigins: []string{"*"},
		defaultMode:    kaiseki.ModeC,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /tokenize.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent tokenize calls. Zero
// removes the limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithCacheSize sets the number of cached tokenization results. Zero
// disables the cache.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithAllowedOrigins sets the CORS allowed origins.
func WithAllowedOrigins(origins []string) Option {
	return func(o *options) { o.allowedOrigins = origins }
}

// WithDefaultMode sets the split mode used when a request names none.
func WithDefaultMode(m kaiseki.SplitMode) Option {
	return func(o *options) { o.defaultMode = m }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	dict       *kaiseki.Dictionary
	tokenizers map[kaiseki.SplitMode]*kaiseki.Tokenizer
	cache      *lru.Cache[cacheKey, tokenizeResponse]
	opts       options
	sem        chan struct{}
	log        *slog.Logger
}

type cacheKey struct {
	mode kaiseki.SplitMode
	text string
}

// NewHandler returns an http.Handler that serves /health, /pos, and POST
// /tokenize.
func NewHandler(dict *kaiseki.Dictionary, optFns ...Option) (http.Handler, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		dict:       dict,
		tokenizers: make(map[kaiseki.SplitMode]*kaiseki.Tokenizer, 3),
		opts:       opts,
		log:        opts.logger,
	}
	for _, m := range []kaiseki.SplitMode{kaiseki.ModeA, kaiseki.ModeB, kaiseki.ModeC} {
		h.tokenizers[m] = dict.Create(kaiseki.WithMode(m))
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}
	if opts.cacheSize > 0 {
		cache, err := lru.New[cacheKey, tokenizeResponse](opts.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create result cache: %w", err)
		}
		h.cache = cache
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/pos", h.handlePOS)
	mux.HandleFunc("/tokenize", h.handleTokenize)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})
	return requestID(logRequests(h.log)(c.Handler(mux))), nil
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

type healthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Dictionaries int    `json:"dictionaries"`
	Words        int    `json:"words"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Version:      buildVersion(),
		Dictionaries: h.dict.DictionaryCount(),
		Words:        h.dict.WordCount(),
	})
}

type posEntry struct {
	ID  int16          `json:"id"`
	POS dictionary.POS `json:"pos"`
}

func (h *handler) handlePOS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := make([]posEntry, 0, h.dict.POSSize())
	for id := range h.dict.POSSize() {
		out = append(out, posEntry{ID: int16(id), POS: h.dict.POSString(int16(id))})
	}
	writeJSON(w, http.StatusOK, out)
}

type tokenizeRequest struct {
	// Text is a pointer so that a missing field can be told apart from
	// an empty text, which tokenizes to no morphemes.
	Text *string `json:"text"`
	Mode string `json:"mode"`
}

// Morpheme is the JSON form of one morpheme. Begin and End are character
// offsets into the request text.
type Morpheme struct {
	Surface        string         `json:"surface"`
	Begin          int            `json:"begin"`
	End            int            `json:"end"`
	POS            dictionary.POS `json:"pos"`
	POSID          int16          `json:"pos_id"`
	NormalizedForm string         `json:"normalized_form"`
	DictionaryForm string         `json:"dictionary_form"`
	ReadingForm    string         `json:"reading_form"`
	DictionaryID   int            `json:"dictionary_id"`
	OOV            bool           `json:"oov"`
}

type tokenizeResponse struct {
	Mode         string     `json:"mode"`
	Morphemes    []Morpheme `json:"morphemes"`
	InternalCost int64      `json:"internal_cost"`
}

func (h *handler) handleTokenize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	var req tokenizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if req.Text == nil {
		writeError(w, http.StatusBadRequest, "text field is required")
		return
	}
	text := *req.Text

	if len(text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return
	}

	mode := h.opts.defaultMode
	if req.Mode != "" {
		m, err := kaiseki.ParseSplitMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	key := cacheKey{mode: mode, text: text}
	if h.cache != nil {
		if resp, ok := h.cache.Get(key); ok {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, resp)
			return
		}
	}

	// Acquire a worker slot, honouring cancellation while waiting. The
	// tokenize goroutine releases it, even after the request gave up.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := h.tokenize(ctx, mode, text)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "tokenize timed out",
				slog.Int("text_len", len(text)),
				slog.Int64("duration_ms", durationMS),
			)
			writeError(w, http.StatusGatewayTimeout, "tokenize timed out")
			return
		}
		h.log.ErrorContext(r.Context(), "tokenize failed",
			slog.Int("text_len", len(text)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.DebugContext(r.Context(), "tokenize complete",
		slog.String("mode", mode.String()),
		slog.Int("text_len", len(text)),
		slog.Int("morphemes", len(resp.Morphemes)),
		slog.Int64("duration_ms", durationMS),
	)
	if h.cache != nil {
		h.cache.Add(key, resp)
	}
	writeJSON(w, http.StatusOK, resp)
}

// tokenize runs the tokenizer off the request goroutine so that the
// request deadline can fire. A late result is dropped. The caller holds
// a worker slot, which is released when the tokenizer returns.
func (h *handler) tokenize(ctx context.Context, mode kaiseki.SplitMode, text string) (tokenizeResponse, error) {
	type result struct {
		resp tokenizeResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		if h.sem != nil {
			defer func() { <-h.sem }()
		}
		list, err := h.tokenizers[mode].Tokenize(text)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{resp: toResponse(mode, list)}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return tokenizeResponse{}, ctx.Err()
	}
}

func toResponse(mode kaiseki.SplitMode, list *kaiseki.MorphemeList) tokenizeResponse {
	out := tokenizeResponse{
		Mode:         mode.String(),
		Morphemes:    make([]Morpheme, 0, list.Len()),
		InternalCost: list.InternalCost(),
	}
	for _, m := range list.All() {
		out.Morphemes = append(out.Morphemes, Morpheme{
			Surface:        m.Surface(),
			Begin:          m.Begin(),
			End:            m.End(),
			POS:            m.PartOfSpeech(),
			POSID:          m.PartOfSpeechID(),
			NormalizedForm: m.NormalizedForm(),
			DictionaryForm: m.DictionaryForm(),
			ReadingForm:    m.ReadingForm(),
			DictionaryID:   m.DictionaryID(),
			OOV:            m.IsOOV(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	dict            *kaiseki.Dictionary
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config, dict *kaiseki.Dictionary, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:             cfg,
		dict:            dict,
		logger:          logger,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Handler builds the request handler from the server configuration.
func (s *Server) Handler() (http.Handler, error) {
	mode, err := kaiseki.ParseSplitMode(s.cfg.Tokenizer.Mode)
	if err != nil {
		return nil, err
	}
	return NewHandler(s.dict,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithCacheSize(s.cfg.Server.CacheSize),
		WithAllowedOrigins(s.cfg.Server.AllowedOrigins),
		WithDefaultMode(mode),
		WithLogger(s.logger),
	)
}

func (s *Server) Start(ctx context.Context) error {
	h, err := s.Handler()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Info("listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
