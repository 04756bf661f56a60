package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/atvirokodosprendimai/intellitest/internal/domain"
)

// Server answers newline-delimited JSON-RPC 2.0 requests on a unix socket
// for the operator CLI. Every method except auth.login takes a token param.
type Server struct {
	services *application.Services
	logger   *slog.Logger
	listener net.Listener
	path     string

	wg      sync.WaitGroup
	methods map[string]method
}

type method func(ctx context.Context, actor domain.User, params json.RawMessage) (any, error)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeNoMethod       = -32601
	codeInvalidParams  = -32602
)

type pageParams struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

func Start(path string, services *application.Services, logger *slog.Logger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{services: services, logger: logger, listener: ln, path: path}
	s.methods = map[string]method{
		"auth.whoami":        s.whoami,
		"projects.list":      s.listProjects,
		"projects.get":       s.getProject,
		"projects.create":    s.createProject,
		"test_cases.list":    s.listTestCases,
		"executions.list":    s.listExecutions,
		"dashboard.stats":    s.dashboardStats,
		"dashboard.activity": s.dashboardActivity,
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) Path() string { return s.path }

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	s.wg.Wait()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(failure(nil, codeParse, "parse error"))
			return
		}
		if err := enc.Encode(s.dispatch(context.Background(), req)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return failure(req.ID, codeInvalidRequest, "invalid request")
	}
	if req.Method == "auth.login" {
		return s.login(ctx, req)
	}
	m, ok := s.methods[req.Method]
	if !ok {
		return failure(req.ID, codeNoMethod, "method not found")
	}

	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return failure(req.ID, codeInvalidParams, "invalid params")
	}
	actor, err := s.services.Auth.Authenticate(ctx, p.Token)
	if err != nil {
		return s.appError(req, err)
	}
	out, err := m(ctx, actor, req.Params)
	if err != nil {
		return s.appError(req, err)
	}
	return response{JSONRPC: "2.0", Result: out, ID: req.ID}
}

func (s *Server) login(ctx context.Context, req request) response {
	var p struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeParams(req.Params, &p) {
		return failure(req.ID, codeInvalidParams, "invalid params")
	}
	res, err := s.services.Auth.Login(ctx, p.Email, p.Password)
	if err != nil {
		return s.appError(req, err)
	}
	return response{JSONRPC: "2.0", Result: res, ID: req.ID}
}

func (s *Server) whoami(ctx context.Context, actor domain.User, _ json.RawMessage) (any, error) {
	return s.services.Auth.Me(ctx, actor)
}

func (s *Server) listProjects(ctx context.Context, actor domain.User, params json.RawMessage) (any, error) {
	var p pageParams
	if err := unmarshal(params, &p); err != nil {
		return nil, err
	}
	return s.services.Projects.List(ctx, actor, p.Skip, p.Limit)
}

func (s *Server) getProject(ctx context.Context, actor domain.User, params json.RawMessage) (any, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := unmarshal(params, &p); err != nil {
		return nil, err
	}
	return s.services.Projects.Get(ctx, actor, p.ID)
}

func (s *Server) createProject(ctx context.Context, actor domain.User, params json.RawMessage) (any, error) {
	var in application.CreateProjectInput
	if err := unmarshal(params, &in); err != nil {
		return nil, err
	}
	return s.services.Projects.Create(ctx, actor, in)
}

func (s *Server) listTestCases(ctx context.Context, actor domain.User, params json.RawMessage) (any, error) {
	var p struct {
		pageParams
		ProjectID string `json:"project_id"`
		Status    string `json:"status"`
	}
	if err := unmarshal(params, &p); err != nil {
		return nil, err
	}
	return s.services.TestCases.List(ctx, actor, application.TestCaseQuery{
		ProjectID: p.ProjectID,
		Status:    domain.Status(p.Status),
		Offset:    p.Skip,
		Limit:     p.Limit,
	})
}

func (s *Server) listExecutions(ctx context.Context, actor domain.User, params json.RawMessage) (any, error) {
	var p struct {
		pageParams
		TestCaseID string `json:"test_case_id"`
		Status     string `json:"status"`
	}
	if err := unmarshal(params, &p); err != nil {
		return nil, err
	}
	return s.services.Executions.List(ctx, actor, application.ExecutionQuery{
		TestCaseID: p.TestCaseID,
		Status:     domain.ExecutionStatus(p.Status),
		Offset:     p.Skip,
		Limit:      p.Limit,
	})
}

func (s *Server) dashboardStats(ctx context.Context, actor domain.User, _ json.RawMessage) (any, error) {
	return s.services.Dashboard.Stats(ctx, actor)
}

func (s *Server) dashboardActivity(ctx context.Context, actor domain.User, params json.RawMessage) (any, error) {
	var p pageParams
	if err := unmarshal(params, &p); err != nil {
		return nil, err
	}
	return s.services.Dashboard.ActivityFeed(ctx, actor, p.Limit)
}

// codeFor mirrors the HTTP status of each error kind, scaled by 100.
func codeFor(err error) int {
	if domain.IsMissingRef(err) {
		return 40400
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return 40000
	case domain.KindUnauthenticated:
		return 40100
	case domain.KindForbidden:
		return 40300
	case domain.KindNotFound:
		return 40400
	case domain.KindConflict:
		return 40900
	}
	return 50000
}

func (s *Server) appError(req request, err error) response {
	code := codeFor(err)
	msg := "internal error"
	var typed *domain.Error
	if errors.As(err, &typed) && typed.Msg != "" {
		msg = typed.Msg
	}
	if code == 50000 {
		s.logger.Error("rpc call failed", slog.String("method", req.Method), slog.Any("error", err))
		msg = "internal error"
	}
	return failure(req.ID, code, msg)
}

func failure(id any, code int, msg string) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: msg}, ID: id}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func unmarshal(raw json.RawMessage, out any) error {
	if !decodeParams(raw, out) {
		return domain.Invalid("invalid params")
	}
	return nil
}
