package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tryon/tryon/internal/model"
)

// SetEmbedConfig replaces the whole embed record and maintains the global and
// per-client indices. Ownership is not checked against existing clients.
func (r *Registry) SetEmbedConfig(ctx context.Context, cfg *model.Embed) error {
	if cfg == nil || strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEmbed)
	}
	if cfg.Vertical == "" {
		cfg.Vertical = model.VerticalCustom
	}
	if !cfg.Vertical.IsValid() {
		return fmt.Errorf("%w: unknown vertical %q", ErrInvalidEmbed, cfg.Vertical)
	}
	if cfg.Width < 0 || cfg.Height < 0 {
		return fmt.Errorf("%w: dimensions must not be negative", ErrInvalidEmbed)
	}

	var previous model.Embed
	found, err := r.getJSON(ctx, embedKeyPrefix+cfg.ID, &previous)
	if err != nil {
		return err
	}

	if err := r.putJSON(ctx, embedKeyPrefix+cfg.ID, cfg); err != nil {
		return err
	}
	if err := r.store.SAdd(ctx, embedIndexKey, cfg.ID); err != nil {
		return fmt.Errorf("index embed: %w", err)
	}

	if found && previous.ClientID != "" && previous.ClientID != cfg.ClientID {
		if err := r.store.SRem(ctx, clientEmbedKeyPrefix+previous.ClientID, cfg.ID); err != nil {
			return fmt.Errorf("unindex previous owner: %w", err)
		}
	}
	if cfg.ClientID != "" {
		if err := r.store.SAdd(ctx, clientEmbedKeyPrefix+cfg.ClientID, cfg.ID); err != nil {
			return fmt.Errorf("index client embed: %w", err)
		}
	}

	r.logger.Debug("embed config saved", "embed_id", cfg.ID, "client_id", cfg.ClientID)
	return nil
}

// GetEmbedConfig returns the embed with the given id.
func (r *Registry) GetEmbedConfig(ctx context.Context, id string) (*model.Embed, error) {
	if id == "" {
		return nil, ErrEmbedNotFound
	}
	var embed model.Embed
	found, err := r.getJSON(ctx, embedKeyPrefix+id, &embed)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrEmbedNotFound
	}
	return &embed, nil
}

// DeleteEmbedConfig removes the embed and its index entries. It returns false
// when the embed did not exist.
func (r *Registry) DeleteEmbedConfig(ctx context.Context, id string) (bool, error) {
	embed, err := r.GetEmbedConfig(ctx, id)
	if errors.Is(err, ErrEmbedNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := r.store.Del(ctx, embedKeyPrefix+id); err != nil {
		return false, fmt.Errorf("delete embed: %w", err)
	}
	if err := r.store.SRem(ctx, embedIndexKey, id); err != nil {
		return false, fmt.Errorf("unindex embed: %w", err)
	}
	if embed.ClientID != "" {
		if err := r.store.SRem(ctx, clientEmbedKeyPrefix+embed.ClientID, id); err != nil {
			return false, fmt.Errorf("unindex client embed: %w", err)
		}
	}

	r.logger.Info("embed deleted", "embed_id", id)
	return true, nil
}

// ListEmbeds returns every indexed embed sorted by id.
func (r *Registry) ListEmbeds(ctx context.Context) ([]*model.Embed, error) {
	return r.listIndexed(ctx, embedIndexKey)
}

// ListEmbedsForClient returns the embeds owned by clientID sorted by id.
func (r *Registry) ListEmbedsForClient(ctx context.Context, clientID string) ([]*model.Embed, error) {
	if clientID == "" {
		return nil, nil
	}
	embeds, err := r.listIndexed(ctx, clientEmbedKeyPrefix+clientID)
	if err != nil {
		return nil, err
	}

	// The per-client set may lag a full-replace that moved ownership.
	owned := embeds[:0]
	for _, e := range embeds {
		if e.ClientID == clientID {
			owned = append(owned, e)
		}
	}
	return owned, nil
}

// listIndexed resolves every id in the set at indexKey, repairing the
// primary index from the local snapshot first if it is empty.
func (r *Registry) listIndexed(ctx context.Context, indexKey string) ([]*model.Embed, error) {
	r.repairIndex(ctx, indexKey)

	ids, err := r.store.SMembers(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", indexKey, err)
	}
	sort.Strings(ids)

	embeds := make([]*model.Embed, 0, len(ids))
	for _, id := range ids {
		embed, err := r.GetEmbedConfig(ctx, id)
		if errors.Is(err, ErrEmbedNotFound) {
			continue
		}
		if err != nil {
			r.logger.Warn("skipping unreadable embed", "embed_id", id, "error", err)
			continue
		}
		embeds = append(embeds, embed)
	}
	return embeds, nil
}
