package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mithrel/cigmint/internal/db"
	"github.com/mithrel/cigmint/internal/remote"
)

// maxBody bounds a single call body.
const maxBody = 4 << 20

// Server is a local replica hosting the NFT and registry canisters on top
// of a Store.
type Server struct {
	cfg   *viper.Viper
	store *db.Store
	log   *zap.Logger
	now   func() time.Time

	mu     sync.Mutex
	nonces map[string]time.Time
}

func New(cfg *viper.Viper, store *db.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		log:    log,
		now:    time.Now,
		nonces: make(map[string]time.Time),
	}
}

// Router returns an http.Handler with registered routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/v2/canister/{canister}/call/{method}", s.handleCall)
	return s.logging(mux)
}

func (s *Server) nftCanister() string      { return s.cfg.GetString("canisters.nft") }
func (s *Server) registryCanister() string { return s.cfg.GetString("canisters.registry") }

type callContext struct {
	canister string
	method   string
	caller   string
	body     []byte
}

type handlerFunc func(r *http.Request, c callContext) (any, error)

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	c := callContext{canister: r.PathValue("canister"), method: r.PathValue("method")}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.reject(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("call body exceeds %d bytes", maxBody))
			return
		}
		s.reject(w, http.StatusBadRequest, "failed to read body")
		return
	}
	c.body = body

	caller, err := s.verifyCall(r, c.canister, c.method, body)
	if err != nil {
		s.reject(w, http.StatusForbidden, err.Error())
		return
	}
	c.caller = caller
	w.Header().Set(remote.HeaderSender, caller)

	h := s.lookup(c.canister, c.method)
	if h == nil {
		s.reject(w, http.StatusNotFound, fmt.Sprintf("canister %s has no method %s", c.canister, c.method))
		return
	}

	out, err := h(r, c)
	if err != nil {
		s.reject(w, statusFor(err), err.Error())
		return
	}
	reply, err := remote.EncodeValue(out)
	if err != nil {
		s.reject(w, http.StatusInternalServerError, "encode reply failed")
		return
	}
	w.Header().Set("Content-Type", remote.ContentType)
	_, _ = w.Write(reply)
}

func (s *Server) lookup(canister, method string) handlerFunc {
	switch canister {
	case s.nftCanister():
		switch method {
		case remote.MethodMint:
			return s.mint
		case remote.MethodBulkMint:
			return s.bulkMint
		}
	case s.registryCanister():
		switch method {
		case remote.MethodCreateCollection:
			return s.createCollection
		case remote.MethodSetAttributes:
			return s.setAttributes
		case remote.MethodAddLayer:
			return s.addLayer
		}
	}
	return nil
}

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) reject(w http.ResponseWriter, code int, msg string) {
	b, err := remote.EncodeValue(remote.Reject{Code: code, Message: msg})
	if err != nil {
		http.Error(w, msg, code)
		return
	}
	w.Header().Set("Content-Type", remote.ContentType)
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrappedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		s.log.Info("call",
			zap.String("method", r.PathValue("method")),
			zap.String("canister", r.PathValue("canister")),
			zap.String("sender", ww.Header().Get(remote.HeaderSender)),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
