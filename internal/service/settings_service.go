package service

import (
	"context"
	"encoding/json"
	"fmt"

	"bujo/internal/repository"
)

// SettingsService stores per-user preferences as an opaque JSON document.
// The server merges patches shallowly and never interprets the keys; the
// client owns their meaning.
type SettingsService struct {
	users *repository.UserRepository
}

func NewSettingsService(users *repository.UserRepository) *SettingsService {
	return &SettingsService{users: users}
}

func (s *SettingsService) Get(ctx context.Context, userID string) (map[string]interface{}, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return decodePreferences(user.Preferences)
}

// Update merges the patch over the stored preferences, key by key, and
// returns the merged document.
func (s *SettingsService) Update(ctx context.Context, userID string, patch map[string]interface{}) (map[string]interface{}, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged, err := decodePreferences(user.Preferences)
	if err != nil {
		return nil, err
	}
	for key, value := range patch {
		merged[key] = value
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.users.UpdatePreferences(ctx, userID, string(raw)); err != nil {
		return nil, err
	}
	return merged, nil
}

func decodePreferences(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var prefs map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}
