package create

import (
	"errors"
	"fmt"
	"sort"

	"publishcore/pkg/attrdef"
	"publishcore/pkg/domain"
)

// memoryHost is an in-memory host used across the package tests. It stores
// the context data blob and instance payloads keyed by instance id.
type memoryHost struct {
	contextData   map[string]any
	instances     map[string]map[string]any
	contextErr    error
	updateErr     error
	updateCalls   int
	folders       map[string]struct{}
	tasksByFolder map[string][]string
}

func newMemoryHost() *memoryHost {
	return &memoryHost{
		contextData: map[string]any{},
		instances:   map[string]map[string]any{},
	}
}

func (h *memoryHost) GetContextData() (map[string]any, error) {
	if h.contextErr != nil {
		return nil, h.contextErr
	}
	return domain.DeepCopyMap(h.contextData), nil
}

func (h *memoryHost) UpdateContextData(data map[string]any, _ *domain.Changes) error {
	h.updateCalls++
	if h.updateErr != nil {
		return h.updateErr
	}
	h.contextData = domain.DeepCopyMap(data)
	return nil
}

func (h *memoryHost) FolderExists(folderPath string) bool {
	_, ok := h.folders[folderPath]
	return ok
}

func (h *memoryHost) TaskExists(folderPath, taskName string) bool {
	for _, task := range h.tasksByFolder[folderPath] {
		if task == taskName {
			return true
		}
	}
	return false
}

func (h *memoryHost) storedIDs() []string {
	ids := make([]string, 0, len(h.instances))
	for id := range h.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// testCreator is a manual creation strategy persisting through memoryHost.
type testCreator struct {
	identifier string
	label      string
	order      int
	host       *memoryHost
	defs       []attrdef.Def

	collectErr   error
	collectPanic string
	updateErr    error
	removeErr    error
}

func (c *testCreator) Identifier() string { return c.identifier }

func (c *testCreator) Label() string {
	if c.label != "" {
		return c.label
	}
	return c.identifier
}

func (c *testCreator) Order() int { return c.order }

func (c *testCreator) InstanceAttrDefs(*CreatedInstance) []attrdef.Def { return c.defs }

func (c *testCreator) CollectInstances(cc *CreateContext) error {
	if c.collectPanic != "" {
		panic(c.collectPanic)
	}
	if c.collectErr != nil {
		return c.collectErr
	}
	var ids []string
	for id := range c.host.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		data := c.host.instances[id]
		if identifier, _ := data[keyCreatorIdentifier].(string); identifier != c.identifier {
			continue
		}
		if err := cc.AddInstance(cc.NewInstanceFromExisting(c, data)); err != nil {
			return err
		}
	}
	return nil
}

func (c *testCreator) UpdateInstances(_ *CreateContext, updates []UpdateData) error {
	if c.updateErr != nil {
		return c.updateErr
	}
	for _, update := range updates {
		c.host.instances[update.Instance.ID()] = update.Instance.DataToStore()
	}
	return nil
}

func (c *testCreator) RemoveInstances(cc *CreateContext, instances []*CreatedInstance) error {
	if c.removeErr != nil {
		return c.removeErr
	}
	for _, instance := range instances {
		delete(c.host.instances, instance.ID())
		cc.DropInstance(instance)
	}
	return nil
}

func (c *testCreator) ProductName(_ *CreateContext, variant string) (string, error) {
	if variant == "" {
		return "", NewCreatorError("variant must not be empty")
	}
	return fmt.Sprintf("%s%s", c.identifier, variant), nil
}

func (c *testCreator) PreCreateAttrDefs() []attrdef.Def {
	return []attrdef.Def{attrdef.NewBoolDef("useSelection", true)}
}

func (c *testCreator) DefaultVariants() []string { return []string{"Main"} }

func (c *testCreator) Create(cc *CreateContext, productName string, data, _ map[string]any) ([]*CreatedInstance, error) {
	instance := cc.NewInstance(c, "render", productName, data)
	c.host.instances[instance.ID()] = instance.DataToStore()
	instance.MarkAsStored()
	if err := cc.AddInstance(instance); err != nil {
		return nil, err
	}
	return []*CreatedInstance{instance}, nil
}

// testAutoCreator creates one workfile instance per reset when missing.
type testAutoCreator struct {
	testCreator
}

func (c *testAutoCreator) Create(cc *CreateContext) (*CreatedInstance, error) {
	instance := cc.NewInstance(c, "workfile", c.identifier+"Main", nil)
	c.host.instances[instance.ID()] = instance.DataToStore()
	instance.MarkAsStored()
	if err := cc.AddInstance(instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// testPublishPlugin exposes fixed attribute definitions.
type testPublishPlugin struct {
	name         string
	instanceDefs []attrdef.Def
	contextDefs  []attrdef.Def
}

func (p *testPublishPlugin) Name() string { return p.name }

func (p *testPublishPlugin) InstanceAttrDefs(*CreatedInstance) []attrdef.Def {
	return p.instanceDefs
}

func (p *testPublishPlugin) ContextAttrDefs() []attrdef.Def { return p.contextDefs }

func asOperationFailed(err error) (*OperationFailedError, bool) {
	var opErr *OperationFailedError
	ok := errors.As(err, &opErr)
	return opErr, ok
}
