package orgservice

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/orgsettings"
)

// policyContext loads every fact the validation rules consult. Lookups whose
// store is not configured leave their fact false.
func (s *Service) policyContext(ctx context.Context, org *domain.Organization, actor domain.Actor, req *orgsettings.UpdateRequest) (orgsettings.PolicyContext, error) {
	pc := orgsettings.PolicyContext{
		Organization: org,
		Actor:        actor,
		Capabilities: orgsettings.Capabilities{},
		Roles:        s.cfg.Roles,
	}

	g, gctx := errgroup.WithContext(ctx)

	if s.deps.Features != nil {
		g.Go(func() error {
			features, err := s.deps.Features.ForOrganization(gctx, org.ID)
			if err != nil {
				return fmt.Errorf("failed to load features: %w", err)
			}
			for name, on := range features {
				pc.Capabilities[name] = on
			}
			return nil
		})
	}

	if s.deps.AuthProviders != nil && req.Require2FA != nil {
		g.Go(func() error {
			ok, err := s.deps.AuthProviders.ExistsForOrganization(gctx, org.ID)
			if err != nil {
				return fmt.Errorf("failed to load auth providers: %w", err)
			}
			pc.HasSSO = ok
			return nil
		})
	}

	if req.ProjectRateLimit != nil || req.AccountRateLimit != nil {
		g.Go(func() error {
			ok, err := s.deps.Options.HasAny(gctx, org.ID, orgsettings.LegacyRateLimitKeys)
			if err != nil {
				return fmt.Errorf("failed to load rate limit options: %w", err)
			}
			pc.HasLegacyRateLimits = ok
			return nil
		})
	}

	if s.deps.Avatars != nil && req.AvatarType != nil {
		g.Go(func() error {
			ok, err := s.deps.Avatars.HasUpload(gctx, org.ID)
			if err != nil {
				return fmt.Errorf("failed to load avatar: %w", err)
			}
			pc.HasUploadedAvatar = ok
			return nil
		})
	}

	if s.deps.Integrations != nil && req.CodecovAccess != nil {
		g.Go(func() error {
			ok, err := s.deps.Integrations.HasActive(gctx, org.ID, s.cfg.CodecovProvider)
			if err != nil {
				return fmt.Errorf("failed to load integrations: %w", err)
			}
			pc.HasCodecovIntegration = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return orgsettings.PolicyContext{}, err
	}
	return pc, nil
}
