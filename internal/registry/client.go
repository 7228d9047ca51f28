package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tryon/tryon/internal/auth"
	"github.com/tryon/tryon/internal/model"
)

// CreateClient upserts a client by id. A token is generated only the first
// time an id is seen; later calls keep the token and creation time and
// update name and email.
func (r *Registry) CreateClient(ctx context.Context, id, name, email string) (*model.Client, error) {
	id = strings.TrimSpace(id)
	email = model.NormalizeEmail(email)
	if id == "" || email == "" {
		return nil, ErrInvalidClient
	}

	if owner, ok, err := r.store.Get(ctx, clientEmailKeyPrefix+email); err != nil {
		return nil, fmt.Errorf("check email index: %w", err)
	} else if ok && owner != id {
		return nil, ErrEmailTaken
	}

	var client model.Client
	found, err := r.getJSON(ctx, clientKeyPrefix+id, &client)
	if err != nil {
		return nil, err
	}

	if !found {
		token, err := auth.GenerateClientToken(r.tokenEnv)
		if err != nil {
			return nil, fmt.Errorf("generate client token: %w", err)
		}
		client = model.Client{
			ID:        id,
			Token:     token,
			CreatedAt: r.now().UTC(),
		}
	} else if client.Email != "" && client.Email != email {
		if _, err := r.store.Del(ctx, clientEmailKeyPrefix+client.Email); err != nil {
			return nil, fmt.Errorf("drop old email index: %w", err)
		}
	}

	client.Name = name
	client.Email = email

	if err := r.putJSON(ctx, clientKeyPrefix+id, &client); err != nil {
		return nil, err
	}
	if err := r.store.SAdd(ctx, clientIndexKey, id); err != nil {
		return nil, fmt.Errorf("index client: %w", err)
	}
	if err := r.store.Set(ctx, clientTokenKeyPrefix+client.Token, id); err != nil {
		return nil, fmt.Errorf("index client token: %w", err)
	}
	if err := r.store.Set(ctx, clientEmailKeyPrefix+email, id); err != nil {
		return nil, fmt.Errorf("index client email: %w", err)
	}

	if !found {
		r.logger.Info("client created", "client_id", id)
	}
	return &client, nil
}

// GetClientByID returns the client with the given id.
func (r *Registry) GetClientByID(ctx context.Context, id string) (*model.Client, error) {
	if id == "" {
		return nil, ErrClientNotFound
	}
	var client model.Client
	found, err := r.getJSON(ctx, clientKeyPrefix+id, &client)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrClientNotFound
	}
	return &client, nil
}

// GetClientByToken resolves a bearer token to its client. Malformed tokens
// are rejected without touching storage.
func (r *Registry) GetClientByToken(ctx context.Context, token string) (*model.Client, error) {
	parsed, err := auth.ParseClientToken(token)
	if err != nil {
		return nil, ErrClientNotFound
	}
	client, err := r.lookupByIndex(ctx, clientTokenKeyPrefix+token, func(c *model.Client) bool {
		return c.Token == token
	})
	if errors.Is(err, ErrClientNotFound) {
		r.logger.Debug("unknown client token", "token_prefix", parsed.Prefix, "token_env", parsed.Env)
	}
	return client, err
}

// GetClientByEmail resolves an email address to its client.
func (r *Registry) GetClientByEmail(ctx context.Context, email string) (*model.Client, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, ErrClientNotFound
	}
	return r.lookupByIndex(ctx, clientEmailKeyPrefix+email, func(c *model.Client) bool {
		return c.Email == email
	})
}

// lookupByIndex follows a secondary index. When the index entry is missing it
// scans the clients known to the local snapshot.
func (r *Registry) lookupByIndex(ctx context.Context, indexKey string, match func(*model.Client) bool) (*model.Client, error) {
	id, ok, err := r.store.Get(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if ok {
		client, err := r.GetClientByID(ctx, id)
		if err == nil && match(client) {
			return client, nil
		}
		if err != nil && !errors.Is(err, ErrClientNotFound) {
			return nil, err
		}
	}

	client := r.scanLocal(ctx, match)
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// scanLocal walks every client in the local snapshot.
func (r *Registry) scanLocal(ctx context.Context, match func(*model.Client) bool) *model.Client {
	local := r.local()
	if local == nil {
		return nil
	}

	ids, err := local.SMembers(ctx, clientIndexKey)
	if err != nil {
		return nil
	}
	for _, id := range ids {
		raw, ok, err := local.Get(ctx, clientKeyPrefix+id)
		if err != nil || !ok {
			continue
		}
		var client model.Client
		if err := decode(raw, &client); err != nil {
			continue
		}
		if match(&client) {
			return &client
		}
	}
	return nil
}
