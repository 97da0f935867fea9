package greeting

import (
	"github.com/pkg/errors"

	"hellopod/src/internal/domain"
	"hellopod/src/internal/service/hostname"
)

var ErrEmptyHostname = errors.New("host name is empty")

type Service struct {
	resolve hostname.Resolver
}

func Create(resolve hostname.Resolver) *Service {
	if resolve == nil {
		resolve = hostname.System
	}
	return &Service{resolve: resolve}
}

// Greet resolves the host name on every call.
func (s *Service) Greet() (string, error) {
	name, err := s.resolve()
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrEmptyHostname
	}
	return domain.GreetingPrefix + name, nil
}
