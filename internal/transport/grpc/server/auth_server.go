package server

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/transport/grpc/authv1"
	"github.com/starcoex/auth-platform/internal/usecase"
)

// AuthServer implements the AuthService gRPC contract. Sibling services call
// it to resolve bearer tokens into principal claims.
type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	auth   *usecase.AuthService
	logger *zap.Logger
}

// NewAuthServer constructs an AuthServer instance.
func NewAuthServer(auth *usecase.AuthService, logger *zap.Logger) *AuthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthServer{auth: auth, logger: logger}
}

// Authenticate verifies the provided access token and returns the principal
// it belongs to. Verification failures are reported in the response body, not
// as transport errors, so callers can distinguish an invalid token from an
// unreachable service.
func (s *AuthServer) Authenticate(ctx context.Context, req *authv1.AuthenticateRequest) (*authv1.AuthenticateResponse, error) {
	if req == nil || strings.TrimSpace(req.GetToken()) == "" {
		return &authv1.AuthenticateResponse{
			Valid: false,
			Error: "token is required",
		}, nil
	}

	principal, claims, err := s.auth.Authenticate(ctx, req.GetToken())
	if err != nil {
		resp := &authv1.AuthenticateResponse{Valid: false}
		switch {
		case errors.Is(err, usecase.ErrExpiredAccessToken):
			resp.Error = "access token expired"
		case errors.Is(err, usecase.ErrInvalidAccessToken):
			resp.Error = "access token invalid"
		default:
			s.logger.Error("authenticate token", zap.Error(err))
			resp.Error = "failed to authenticate token"
		}
		return resp, nil
	}

	var expiresAt int64
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Unix()
	}

	return &authv1.AuthenticateResponse{
		Valid:     true,
		UserId:    principal.ID,
		Email:     principal.Email,
		Roles:     append([]string(nil), principal.Roles...),
		ExpiresAt: expiresAt,
	}, nil
}
