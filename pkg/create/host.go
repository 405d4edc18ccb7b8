package create

import (
	"publishcore/pkg/domain"
)

// HostAdapter is the bridge between the create context and the application
// that owns the authored content. It loads and stores the context-level data
// blob; instance persistence is owned by the individual creators.
type HostAdapter interface {
	// GetContextData loads the context-level data blob.
	GetContextData() (map[string]any, error)
	// UpdateContextData stores changed context-level data. The diff covers
	// the change since the last load or store.
	UpdateContextData(data map[string]any, changes *domain.Changes) error
}

// CurrentContextProvider is an optional host capability exposing where the
// user currently works.
type CurrentContextProvider interface {
	CurrentContext() (folderPath, taskName string)
}

// ContextValidator is an optional host capability used to flag instances
// whose folder or task no longer exist.
type ContextValidator interface {
	FolderExists(folderPath string) bool
	TaskExists(folderPath, taskName string) bool
}

// InstanceContextInfo reports the validity of an instance's folder and task
// against the host.
type InstanceContextInfo struct {
	FolderIsValid bool
	TaskIsValid   bool
}

// Valid reports whether both folder and task passed validation.
func (i InstanceContextInfo) Valid() bool {
	return i.FolderIsValid && i.TaskIsValid
}
