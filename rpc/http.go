package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"stablemint/native/vault"
	"stablemint/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
	codeNotFound       = -32040
	codeSolvency       = -32041
	codeSafety         = -32042
	codeExternalCall   = -32043
)

// Server exposes the vault engine over a single-endpoint JSON-RPC API with
// health and metrics side channels.
type Server struct {
	engine    *vault.Engine
	authToken string
	limiter   *rate.Limiter
	logger    *slog.Logger
	httpSrv   *http.Server
}

// ServerOptions tunes the transport. Zero values pick safe defaults.
type ServerOptions struct {
	AuthToken  string
	RatePerSec float64
	Burst      int
	Logger     *slog.Logger
}

// NewServer wires a JSON-RPC server around the engine.
func NewServer(engine *vault.Engine, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perSec := opts.RatePerSec
	if perSec <= 0 {
		perSec = 50
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 100
	}
	return &Server{
		engine:    engine,
		authToken: strings.TrimSpace(opts.AuthToken),
		limiter:   rate.NewLimiter(rate.Limit(perSec), burst),
		logger:    logger,
	}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("json-rpc server listening", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// engineError maps an engine failure onto transport status and code.
func engineError(err error) (int, int) {
	switch vault.Classify(err) {
	case vault.KindAuthorization:
		return http.StatusForbidden, codeUnauthorized
	case vault.KindNotFound:
		return http.StatusNotFound, codeNotFound
	case vault.KindValidation:
		return http.StatusBadRequest, codeInvalidParams
	case vault.KindSolvency:
		return http.StatusConflict, codeSolvency
	case vault.KindSafetyInvariant:
		return http.StatusConflict, codeSafety
	case vault.KindExternalCall:
		return http.StatusBadGateway, codeExternalCall
	}
	return http.StatusInternalServerError, codeServerError
}

func (s *Server) writeEngineError(w http.ResponseWriter, id interface{}, err error) int {
	status, code := engineError(err)
	writeError(w, status, id, code, err.Error(), nil)
	return code
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, scheme))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	requestID := uuid.NewString()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)

	if !s.limiter.Allow() {
		metrics.RPC().RecordThrottle()
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	errCode := s.dispatch(w, r, req)
	metrics.RPC().Observe(req.Method, errCode, time.Since(started))
	s.logger.Info("rpc request",
		"method", req.Method,
		"requestId", requestID,
		"durationMs", time.Since(started).Milliseconds(),
		"errorCode", errCode,
	)
}

// dispatch routes to the method handler and returns the wire error code,
// zero on success.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) int {
	switch req.Method {
	case "vault_addCollateralType":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return authErr.Code
		}
		return s.handleAddCollateralType(w, req)
	case "vault_listCollateralTypes":
		return s.handleListCollateralTypes(w, req)
	case "vault_getCollateralType":
		return s.handleGetCollateralType(w, req)
	case "vault_updatePrice":
		return s.handleUpdatePrice(w, req)
	case "vault_submitPrice":
		return s.handleSubmitPrice(w, req)
	case "vault_getPrice":
		return s.handleGetPrice(w, req)
	case "vault_open":
		return s.handleOpenVault(w, req)
	case "vault_deposit":
		return s.handleDeposit(w, req)
	case "vault_withdraw":
		return s.handleWithdraw(w, req)
	case "vault_generate":
		return s.handleGenerate(w, req)
	case "vault_repay":
		return s.handleRepay(w, req)
	case "vault_liquidate":
		return s.handleLiquidate(w, req)
	case "vault_getVault":
		return s.handleGetVault(w, req)
	case "vault_listVaults":
		return s.handleListVaults(w, req)
	case "vault_getCollateralization":
		return s.handleGetCollateralization(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		return codeMethodNotFound
	}
}
