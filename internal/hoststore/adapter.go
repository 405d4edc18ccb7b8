package hoststore

import (
	"context"

	"publishcore/pkg/create"
	"publishcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ create.HostAdapter            = (*Adapter)(nil)
	_ create.CurrentContextProvider = (*Adapter)(nil)
	_ create.ContextValidator       = (*Adapter)(nil)
)

// Adapter exposes a Store as a host for the create context. Creators built
// on it persist their instances through the record helpers.
type Adapter struct {
	store Store

	currentFolder string
	currentTask   string
	folders       map[string][]string
}

// NewAdapter wraps a store.
func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store, folders: map[string][]string{}}
}

// Store returns the wrapped store.
func (a *Adapter) Store() Store { return a.store }

// SetCurrentContext records where the user currently works.
func (a *Adapter) SetCurrentContext(folderPath, taskName string) {
	a.currentFolder = folderPath
	a.currentTask = taskName
}

// CurrentContext implements create.CurrentContextProvider.
func (a *Adapter) CurrentContext() (string, string) {
	return a.currentFolder, a.currentTask
}

// RegisterFolder declares a folder and its tasks for context validation.
func (a *Adapter) RegisterFolder(folderPath string, tasks ...string) {
	a.folders[folderPath] = append(a.folders[folderPath], tasks...)
}

// FolderExists implements create.ContextValidator.
func (a *Adapter) FolderExists(folderPath string) bool {
	_, ok := a.folders[folderPath]
	return ok
}

// TaskExists implements create.ContextValidator.
func (a *Adapter) TaskExists(folderPath, taskName string) bool {
	for _, task := range a.folders[folderPath] {
		if task == taskName {
			return true
		}
	}
	return false
}

// GetContextData implements create.HostAdapter.
func (a *Adapter) GetContextData() (map[string]any, error) {
	return a.store.LoadContextData(context.Background())
}

// UpdateContextData implements create.HostAdapter.
func (a *Adapter) UpdateContextData(data map[string]any, _ *domain.Changes) error {
	return a.store.SaveContextData(context.Background(), data)
}

// ListInstanceRecords returns the stored payloads owned by the creator
// identifier, in insertion order.
func (a *Adapter) ListInstanceRecords(creatorIdentifier string) ([]map[string]any, error) {
	payloads, err := a.store.ListInstances(context.Background())
	if err != nil {
		return nil, err
	}
	var output []map[string]any
	for _, payload := range payloads {
		identifier, _ := payload["creator_identifier"].(string)
		if identifier == creatorIdentifier {
			output = append(output, payload)
		}
	}
	return output, nil
}

// SaveInstanceRecord stores one instance payload.
func (a *Adapter) SaveInstanceRecord(id string, data map[string]any) error {
	return a.store.UpsertInstance(context.Background(), id, data)
}

// DeleteInstanceRecord removes one instance payload. Missing records are
// tolerated so removal stays idempotent.
func (a *Adapter) DeleteInstanceRecord(id string) error {
	err := a.store.DeleteInstance(context.Background(), id)
	if _, missing := err.(*NotFoundError); missing {
		return nil
	}
	return err
}
