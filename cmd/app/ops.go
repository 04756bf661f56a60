package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/application"
)

// Each operation goes over the unix socket or the HTTP API, depending on
// the session transport.

func doLogin(ctx context.Context, s session, email, password string, out any) error {
	if s.Transport == "uds" {
		return newRPCClient(s.Socket).call(ctx, "auth.login", map[string]any{"email": email, "password": password}, out)
	}
	return newAPIClient(s.Server, "").request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, out)
}

func doWhoAmI(ctx context.Context, s session, out any) error {
	token, err := s.token(time.Now())
	if err != nil {
		return err
	}
	if s.Transport == "uds" {
		return newRPCClient(s.Socket).call(ctx, "auth.whoami", map[string]any{"token": token}, out)
	}
	return newAPIClient(s.Server, token).request(ctx, http.MethodGet, "/api/auth/me", nil, out)
}

func doProjectsList(ctx context.Context, s session, skip, limit int, out any) error {
	token, err := s.token(time.Now())
	if err != nil {
		return err
	}
	if s.Transport == "uds" {
		return newRPCClient(s.Socket).call(ctx, "projects.list", map[string]any{"token": token, "skip": skip, "limit": limit}, out)
	}
	q := url.Values{}
	q.Set("skip", fmt.Sprint(skip))
	q.Set("limit", fmt.Sprint(limit))
	return newAPIClient(s.Server, token).request(ctx, http.MethodGet, "/api/projects?"+q.Encode(), nil, out)
}

func doProjectsGet(ctx context.Context, s session, id string, out any) error {
	token, err := s.token(time.Now())
	if err != nil {
		return err
	}
	if s.Transport == "uds" {
		return newRPCClient(s.Socket).call(ctx, "projects.get", map[string]any{"token": token, "id": id}, out)
	}
	return newAPIClient(s.Server, token).request(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, out)
}

func doProjectsCreate(ctx context.Context, s session, in application.CreateProjectInput, out any) error {
	token, err := s.token(time.Now())
	if err != nil {
		return err
	}
	if s.Transport == "uds" {
		return newRPCClient(s.Socket).call(ctx, "projects.create", map[string]any{
			"token":       token,
			"name":        in.Name,
			"description": in.Description,
			"team_id":     in.TeamID,
		}, out)
	}
	return newAPIClient(s.Server, token).request(ctx, http.MethodPost, "/api/projects", in, out)
}

func doDashboardStats(ctx context.Context, s session, out any) error {
	token, err := s.token(time.Now())
	if err != nil {
		return err
	}
	if s.Transport == "uds" {
		return newRPCClient(s.Socket).call(ctx, "dashboard.stats", map[string]any{"token": token}, out)
	}
	return newAPIClient(s.Server, token).request(ctx, http.MethodGet, "/api/dashboard/stats", nil, out)
}
