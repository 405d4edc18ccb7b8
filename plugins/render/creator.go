// Package render provides the reference manual creation strategy: render
// product instances persisted through a host store adapter.
package render

import (
	"fmt"
	"strings"

	"publishcore/internal/hoststore"
	"publishcore/pkg/attrdef"
	"publishcore/pkg/create"
)

const identifier = "io.publishcore.create.render"

// Creator authors render instances. One instance per layer variant.
type Creator struct {
	adapter *hoststore.Adapter
}

// New builds the render creator on top of the host store adapter.
func New(adapter *hoststore.Adapter) *Creator {
	return &Creator{adapter: adapter}
}

func (c *Creator) Identifier() string { return identifier }
func (c *Creator) Label() string      { return "Render" }
func (c *Creator) Order() int         { return 100 }

// InstanceAttrDefs describes the per-instance render settings.
func (c *Creator) InstanceAttrDefs(*create.CreatedInstance) []attrdef.Def {
	return []attrdef.Def{
		attrdef.NewBoolDef("review", true, attrdef.WithLabel("Review")),
		attrdef.NewNumberDef("frameStart", 1001, 0, 1_000_000, 0, attrdef.WithLabel("Frame start")),
		attrdef.NewNumberDef("frameEnd", 1100, 0, 1_000_000, 0, attrdef.WithLabel("Frame end")),
	}
}

// PreCreateAttrDefs describes options gathered before creation.
func (c *Creator) PreCreateAttrDefs() []attrdef.Def {
	return []attrdef.Def{
		attrdef.NewBoolDef("useSelection", true, attrdef.WithLabel("Use selection")),
	}
}

// DefaultVariants suggests common render layer variants.
func (c *Creator) DefaultVariants() []string {
	return []string{"Main", "Beauty", "Shadow"}
}

// ProductName composes the product name from the current task and variant.
func (c *Creator) ProductName(cc *create.CreateContext, variant string) (string, error) {
	if variant == "" {
		return "", create.NewCreatorError("variant must not be empty")
	}
	name := "render" + title(variant)
	_, task := c.adapter.CurrentContext()
	if task != "" {
		name = fmt.Sprintf("render%s%s", title(task), title(variant))
	}
	return name, nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Create makes a new render instance in the current context and persists it.
func (c *Creator) Create(cc *create.CreateContext, productName string, data, preCreateData map[string]any) ([]*create.CreatedInstance, error) {
	merged := map[string]any{}
	for key, value := range data {
		merged[key] = value
	}
	folder, task := c.adapter.CurrentContext()
	if _, ok := merged["folderPath"]; !ok && folder != "" {
		merged["folderPath"] = folder
	}
	if _, ok := merged["task"]; !ok && task != "" {
		merged["task"] = task
	}

	instance := cc.NewInstance(c, "render", productName, merged)
	if useSelection, _ := preCreateData["useSelection"].(bool); useSelection {
		instance.TransientData()["use_selection"] = true
	}
	if err := c.adapter.SaveInstanceRecord(instance.ID(), instance.DataToStore()); err != nil {
		return nil, fmt.Errorf("store render instance: %w", err)
	}
	instance.MarkAsStored()
	if err := cc.AddInstance(instance); err != nil {
		return nil, err
	}
	return []*create.CreatedInstance{instance}, nil
}

// CollectInstances loads stored render instances into the context.
func (c *Creator) CollectInstances(cc *create.CreateContext) error {
	records, err := c.adapter.ListInstanceRecords(identifier)
	if err != nil {
		return fmt.Errorf("collect render instances: %w", err)
	}
	for _, record := range records {
		if err := cc.AddInstance(cc.NewInstanceFromExisting(c, record)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateInstances persists pending changes of the listed instances.
func (c *Creator) UpdateInstances(_ *create.CreateContext, updates []create.UpdateData) error {
	for _, update := range updates {
		if err := c.adapter.SaveInstanceRecord(update.Instance.ID(), update.Instance.DataToStore()); err != nil {
			return fmt.Errorf("store render instance %s: %w", update.Instance.ID(), err)
		}
	}
	return nil
}

// RemoveInstances deletes the listed instances from the store and the
// context.
func (c *Creator) RemoveInstances(cc *create.CreateContext, instances []*create.CreatedInstance) error {
	for _, instance := range instances {
		if err := c.adapter.DeleteInstanceRecord(instance.ID()); err != nil {
			return fmt.Errorf("delete render instance %s: %w", instance.ID(), err)
		}
		cc.DropInstance(instance)
	}
	return nil
}
