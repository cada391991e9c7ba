package callbacks

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/hackbot/core/stash"
)

const (
	// MaxDataLen is Telegram's limit for callback_data, in bytes.
	MaxDataLen = 64
	// RefPrefix marks callback data that points into the stash.
	RefPrefix = "ref:"
)

// Packer fits encoded dialog payloads into callback_data. Payloads longer than
// MaxDataLen are stored in the stash and replaced by a reference.
type Packer struct {
	store stash.Store
}

// NewPacker returns a Packer backed by store.
func NewPacker(store stash.Store) *Packer {
	return &Packer{store: store}
}

// Pack returns data suitable for an inline button.
func (p *Packer) Pack(ctx context.Context, raw string) (string, error) {
	if len(raw) <= MaxDataLen && !strings.HasPrefix(raw, RefPrefix) {
		return raw, nil
	}
	if p == nil || p.store == nil {
		return "", fmt.Errorf("callbacks: payload of %d bytes needs a stash", len(raw))
	}
	key, err := p.store.Put(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("callbacks: stash payload: %w", err)
	}
	return RefPrefix + key, nil
}

// Unpack reverses Pack. Data without RefPrefix is returned unchanged; an
// unknown reference returns stash.ErrNotFound.
func (p *Packer) Unpack(ctx context.Context, data string) (string, error) {
	key, ok := strings.CutPrefix(data, RefPrefix)
	if !ok {
		return data, nil
	}
	if p == nil || p.store == nil {
		return "", stash.ErrNotFound
	}
	raw, err := p.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("callbacks: resolve %s: %w", data, err)
	}
	return raw, nil
}
