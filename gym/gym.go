// Package gym implements the workout API calls on top of the authenticated
// client.
package gym

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/habedi/gymctl/client"
	"github.com/habedi/gymctl/pkg/pool"
	"github.com/rs/zerolog/log"
)

// Transport is the part of *client.Client the gym API needs.
type Transport interface {
	Do(ctx context.Context, req *client.Request) (*client.Response, error)
	BaseURL() string
}

// API wraps the workout endpoints.
type API struct {
	transport Transport
}

// New creates an API on top of transport.
func New(transport Transport) *API {
	return &API{transport: transport}
}

func (a *API) getJSON(ctx context.Context, path string, v any) error {
	resp, err := a.transport.Do(ctx, client.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		return err
	}
	return resp.DecodeJSON(v)
}

// Groups lists the muscle groups.
func (a *API) Groups(ctx context.Context) ([]string, error) {
	var groups []string
	if err := a.getJSON(ctx, "groups", &groups); err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	return groups, nil
}

// ExercisesByGroup lists the exercises of one group.
func (a *API) ExercisesByGroup(ctx context.Context, group string) ([]Exercise, error) {
	if strings.TrimSpace(group) == "" {
		return nil, errors.New("group cannot be empty")
	}
	var exercises []Exercise
	if err := a.getJSON(ctx, "exercises/bygroup/"+url.PathEscape(group), &exercises); err != nil {
		return nil, fmt.Errorf("failed to fetch exercises for group %s: %w", group, err)
	}
	return exercises, nil
}

// ExercisesForGroups fetches several groups with at most workers requests in
// flight. Results keep the order of groups; each carries the group as Item.
// onDone, when set, runs after each group completes and may be called from
// several goroutines.
func (a *API) ExercisesForGroups(ctx context.Context, groups []string, workers int, onDone func(group string)) []pool.Result[string, []Exercise] {
	results := pool.Map(ctx, groups, workers, func(ctx context.Context, group string) ([]Exercise, error) {
		exercises, err := a.ExercisesByGroup(ctx, group)
		if onDone != nil {
			onDone(group)
		}
		return exercises, err
	})
	for _, r := range results {
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("group", r.Item).Msg("Failed to fetch group")
		}
	}
	return results
}

// Exercise fetches one exercise.
func (a *API) Exercise(ctx context.Context, id int) (*Exercise, error) {
	var ex Exercise
	if err := a.getJSON(ctx, "exercises/"+strconv.Itoa(id), &ex); err != nil {
		return nil, fmt.Errorf("failed to fetch exercise %d: %w", id, err)
	}
	return &ex, nil
}

// RegisterExercise records exercise id as completed now.
func (a *API) RegisterExercise(ctx context.Context, id int) error {
	req := client.NewRequest(http.MethodPost, "history", map[string]int{"exercise_id": id})
	if _, err := a.transport.Do(ctx, req); err != nil {
		return fmt.Errorf("failed to register exercise %d: %w", id, err)
	}
	log.Info().Int("exercise_id", id).Msg("Exercise registered")
	return nil
}

// History lists completed exercises grouped by day, most recent first.
func (a *API) History(ctx context.Context) ([]HistoryDay, error) {
	var days []HistoryDay
	if err := a.getJSON(ctx, "history", &days); err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return days, nil
}

// UpdateProfile changes the user's name and, optionally, password.
func (a *API) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	if _, err := a.transport.Do(ctx, client.NewRequest(http.MethodPut, "users", update)); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// AvatarURL returns the public URL of an avatar file name.
func (a *API) AvatarURL(avatar string) string {
	return a.assetURL("avatar", avatar)
}

// DemoURL returns the public URL of an exercise demo animation.
func (a *API) DemoURL(ex Exercise) string {
	return a.assetURL("exercise/demo", ex.Demo)
}

// ThumbURL returns the public URL of an exercise thumbnail.
func (a *API) ThumbURL(ex Exercise) string {
	return a.assetURL("exercise/thumb", ex.Thumb)
}

func (a *API) assetURL(dir, name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSuffix(a.transport.BaseURL(), "/") + "/" + dir + "/" + url.PathEscape(name)
}
