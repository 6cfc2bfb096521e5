package zendesk

import (
	"fmt"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	apperr "github.com/ejwhite7/zendesk-academy/internal/pkg/errors"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

// Factory builds a client bound to one knowledge source's credentials.
type Factory interface {
	ForSource(ks *types.KnowledgeSource) (Client, error)
}

type FactoryFunc func(ks *types.KnowledgeSource) (Client, error)

func (f FactoryFunc) ForSource(ks *types.KnowledgeSource) (Client, error) { return f(ks) }

type factory struct {
	log      *logger.Logger
	defaults Config
}

// NewFactory returns a Factory whose clients share the transport settings in
// defaults. Credential fields in defaults are ignored.
func NewFactory(log *logger.Logger, defaults Config) Factory {
	return &factory{log: log, defaults: defaults}
}

func (f *factory) ForSource(ks *types.KnowledgeSource) (Client, error) {
	if ks == nil {
		return nil, fmt.Errorf("knowledge source not found: %w", apperr.ErrMisconfigured)
	}
	if !ks.HasCredentials() {
		return nil, fmt.Errorf("knowledge source %s has no credentials: %w", ks.ID, apperr.ErrMisconfigured)
	}
	sc := ks.Config.Data()
	cfg := f.defaults
	cfg.Subdomain = sc.Subdomain
	cfg.Email = sc.Email
	cfg.APIToken = sc.APIToken
	return NewClient(f.log, cfg)
}
