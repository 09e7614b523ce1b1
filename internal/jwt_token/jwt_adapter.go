package jwttoken

import (
	"github.com/okatech-org/digitalium-archive/internal/platform/middleware"
)

// Adapter exposes the token service through the middleware's validator
// interface so the transport never imports jwt types directly.
type Adapter struct {
	service *Service
}

func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{
		Actor: claims.Subject,
		Role:  claims.Role,
	}, nil
}
