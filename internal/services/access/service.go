package access

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/GK-FY/bulk/internal/services/settings"
)

var ErrOwnerRevoke = errors.New("owners cannot be removed")

type SettingsRegistry interface {
	Current() settings.Settings
	Set(ctx context.Context, key, value string) error
}

// Service resolves admin rights. Owners come from configuration and cannot
// be revoked; further admins live in the admins setting.
type Service struct {
	owners   []string
	settings SettingsRegistry
}

func NewService(owners []string, registry SettingsRegistry) *Service {
	cleaned := make([]string, 0, len(owners))
	for _, id := range owners {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(cleaned, id) {
			cleaned = append(cleaned, id)
		}
	}
	return &Service{owners: cleaned, settings: registry}
}

func (s *Service) IsOwner(actorID string) bool {
	return slices.Contains(s.owners, actorID)
}

func (s *Service) IsAdmin(actorID string) bool {
	if actorID == "" {
		return false
	}
	if s.IsOwner(actorID) {
		return true
	}
	return s.settings != nil && s.settings.Current().IsAdmin(actorID)
}

// AdminIDs lists owners first, then granted admins, without duplicates.
func (s *Service) AdminIDs() []string {
	out := slices.Clone(s.owners)
	if s.settings == nil {
		return out
	}
	for _, id := range s.settings.Current().Admins {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) Grant(ctx context.Context, actorID string) (bool, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return false, errors.New("actor id is required")
	}
	if s.IsAdmin(actorID) {
		return false, nil
	}

	admins := append(slices.Clone(s.settings.Current().Admins), actorID)
	if err := s.settings.Set(ctx, settings.KeyAdmins, strings.Join(admins, ",")); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) Revoke(ctx context.Context, actorID string) (bool, error) {
	actorID = strings.TrimSpace(actorID)
	if s.IsOwner(actorID) {
		return false, ErrOwnerRevoke
	}

	admins := slices.Clone(s.settings.Current().Admins)
	idx := slices.Index(admins, actorID)
	if idx < 0 {
		return false, nil
	}
	admins = slices.Delete(admins, idx, idx+1)
	if err := s.settings.Set(ctx, settings.KeyAdmins, strings.Join(admins, ",")); err != nil {
		return false, err
	}
	return true, nil
}
