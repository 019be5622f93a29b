package account

import (
	"context"
	"strings"

	"rollcall/pkg/geo"
	"rollcall/pkg/types"
)

// SetIPPolicy installs the allowed address and enables IP verification.
func (s *Service) SetIPPolicy(ctx context.Context, adminID, allowedIP string) (*types.OrganizationPolicy, error) {
	allowedIP = strings.TrimSpace(allowedIP)
	if allowedIP == "" {
		return nil, ErrPolicyAllowedIPUnset
	}
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	admin.Policy.IPVerification = true
	admin.Policy.AllowedIP = allowedIP
	admin.UpdatedAt = s.now()
	if err := s.store.Admins().Update(ctx, admin); err != nil {
		return nil, err
	}
	return &admin.Policy, nil
}

// ToggleIPPolicy flips IP verification. Disabling clears the stored address;
// re-enabling requires it to be set again.
func (s *Service) ToggleIPPolicy(ctx context.Context, adminID string) (*types.OrganizationPolicy, error) {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Policy.IPVerification {
		admin.Policy.IPVerification = false
		admin.Policy.AllowedIP = ""
	} else {
		if admin.Policy.AllowedIP == "" {
			return nil, ErrPolicyAllowedIPUnset
		}
		admin.Policy.IPVerification = true
	}
	admin.UpdatedAt = s.now()
	if err := s.store.Admins().Update(ctx, admin); err != nil {
		return nil, err
	}
	return &admin.Policy, nil
}

// SetLocationPolicy installs the geofence derived from center and radius and
// enables location verification. Radius zero falls back to the default.
func (s *Service) SetLocationPolicy(ctx context.Context, adminID string, center types.GeoPoint, radiusMeters float64) (*types.OrganizationPolicy, error) {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	fence := geo.FenceFromCenter(center, radiusMeters)
	admin.Policy.LocationVerification = true
	admin.Policy.Center = &center
	admin.Policy.Fence = &fence
	admin.UpdatedAt = s.now()
	if err := s.store.Admins().Update(ctx, admin); err != nil {
		return nil, err
	}
	return &admin.Policy, nil
}

// ToggleLocationPolicy flips location verification. Disabling clears the
// stored center and fence.
func (s *Service) ToggleLocationPolicy(ctx context.Context, adminID string) (*types.OrganizationPolicy, error) {
	admin, err := s.store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Policy.LocationVerification {
		admin.Policy.LocationVerification = false
		admin.Policy.Center = nil
		admin.Policy.Fence = nil
	} else {
		if admin.Policy.Center == nil || admin.Policy.Fence == nil {
			return nil, ErrPolicyLocationUnset
		}
		admin.Policy.LocationVerification = true
	}
	admin.UpdatedAt = s.now()
	if err := s.store.Admins().Update(ctx, admin); err != nil {
		return nil, err
	}
	return &admin.Policy, nil
}

// PolicyForOrganization resolves the org-wide check-in policy the scan
// validator applies.
func (s *Service) PolicyForOrganization(ctx context.Context, org string) (types.OrganizationPolicy, error) {
	admin, err := s.store.Admins().GetByOrganization(ctx, org)
	if err != nil {
		return types.OrganizationPolicy{}, err
	}
	return admin.Policy, nil
}
