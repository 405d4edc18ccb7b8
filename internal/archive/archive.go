// Package archive persists point-in-time snapshots of an authoring session
// to blob storage, so farm jobs and reviews can inspect what was published
// without access to the host application.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"publishcore/internal/blob"
	"publishcore/pkg/create"
)

// Snapshot is the stored representation of one authoring session state.
type Snapshot struct {
	TakenAt     time.Time        `json:"taken_at"`
	ContextData map[string]any   `json:"context_data"`
	Instances   []map[string]any `json:"instances"`
}

// Archiver writes snapshots to a blob store under a key prefix.
type Archiver struct {
	store  blob.Store
	prefix string
	now    func() time.Time
}

// New builds an archiver. The prefix groups snapshots of one project or
// session, e.g. "projects/alpha".
func New(store blob.Store, prefix string) *Archiver {
	if prefix == "" {
		prefix = "snapshots"
	}
	return &Archiver{store: store, prefix: prefix, now: time.Now}
}

// Take serializes the current state of the context and stores it as a new
// blob. Returns the blob key.
func (a *Archiver) Take(ctx context.Context, cc *create.CreateContext) (string, error) {
	snapshot := Snapshot{
		TakenAt:     a.now().UTC(),
		ContextData: cc.ContextDataToStore(),
	}
	for _, instance := range cc.Instances() {
		snapshot.Instances = append(snapshot.Instances, instance.DataToStore())
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := fmt.Sprintf("%s/%s.json", a.prefix, snapshot.TakenAt.Format("20060102T150405.000000000Z"))
	if _, err := a.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
	}); err != nil {
		return "", fmt.Errorf("store snapshot: %w", err)
	}
	return key, nil
}

// Load reads one stored snapshot by key.
func (a *Archiver) Load(ctx context.Context, key string) (Snapshot, error) {
	_, body, err := a.store.Get(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	defer func() { _ = body.Close() }()
	payload, err := io.ReadAll(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Keys lists the stored snapshot keys under the archiver prefix, oldest
// first. Key names embed the timestamp so lexical order is temporal order.
func (a *Archiver) Keys(ctx context.Context) ([]string, error) {
	infos, err := a.store.List(ctx, a.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Prune removes the oldest snapshots beyond the keep count.
func (a *Archiver) Prune(ctx context.Context, keep int) (int, error) {
	keys, err := a.Keys(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	removed := 0
	for len(keys)-removed > keep {
		if _, err := a.store.Delete(ctx, keys[removed]); err != nil {
			return removed, fmt.Errorf("prune snapshot %s: %w", keys[removed], err)
		}
		removed++
	}
	return removed, nil
}
