package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/layer-3/mintbox/core"
)

// MemoryPinner content-addresses uploads locally without a pinning service
type MemoryPinner struct {
	gateway string
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryPinner creates an in-process pinner
func NewMemoryPinner() *MemoryPinner {
	return &MemoryPinner{
		gateway: DefaultGateway,
		objects: make(map[string][]byte),
	}
}

func (m *MemoryPinner) PinFile(ctx context.Context, name, contentType string, r io.Reader) (core.PinnedObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("%w: %v", core.ErrPinning, err)
	}
	return m.put(data)
}

func (m *MemoryPinner) PinJSON(ctx context.Context, name string, v any) (core.PinnedObject, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("%w: %v", core.ErrPinning, err)
	}
	return m.put(data)
}

// Get returns pinned content by cid
func (m *MemoryPinner) Get(id string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[id]
	return data, ok
}

func (m *MemoryPinner) put(data []byte) (core.PinnedObject, error) {
	id, err := RawCID(data)
	if err != nil {
		return core.PinnedObject{}, fmt.Errorf("%w: %v", core.ErrPinning, err)
	}

	m.mu.Lock()
	m.objects[id] = bytes.Clone(data)
	m.mu.Unlock()

	return Object(id, m.gateway), nil
}

// RawCID returns the base32 CIDv1 of data under the raw codec
func RawCID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}
