// Package workfile provides the reference automatic creation strategy: a
// single workfile instance that exists once per session.
package workfile

import (
	"fmt"

	"publishcore/internal/hoststore"
	"publishcore/pkg/attrdef"
	"publishcore/pkg/create"
)

const identifier = "io.publishcore.create.workfile"

// Creator authors the workfile instance automatically on reset.
type Creator struct {
	adapter *hoststore.Adapter
}

// New builds the workfile creator on top of the host store adapter.
func New(adapter *hoststore.Adapter) *Creator {
	return &Creator{adapter: adapter}
}

func (c *Creator) Identifier() string { return identifier }
func (c *Creator) Label() string      { return "Workfile" }
func (c *Creator) Order() int         { return 0 }

func (c *Creator) InstanceAttrDefs(*create.CreatedInstance) []attrdef.Def {
	return []attrdef.Def{
		attrdef.NewBoolDef("lockVersion", false, attrdef.WithLabel("Lock version")),
	}
}

// Create makes the automatic workfile instance for the current context.
func (c *Creator) Create(cc *create.CreateContext) (*create.CreatedInstance, error) {
	folder, task := c.adapter.CurrentContext()
	instance := cc.NewInstance(c, "workfile", "workfileMain", map[string]any{
		"folderPath": folder,
		"task":       task,
	})
	if err := c.adapter.SaveInstanceRecord(instance.ID(), instance.DataToStore()); err != nil {
		return nil, fmt.Errorf("store workfile instance: %w", err)
	}
	instance.MarkAsStored()
	if err := cc.AddInstance(instance); err != nil {
		return nil, err
	}
	return instance, nil
}

// CollectInstances loads the stored workfile instance into the context.
func (c *Creator) CollectInstances(cc *create.CreateContext) error {
	records, err := c.adapter.ListInstanceRecords(identifier)
	if err != nil {
		return fmt.Errorf("collect workfile instance: %w", err)
	}
	for _, record := range records {
		if err := cc.AddInstance(cc.NewInstanceFromExisting(c, record)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Creator) UpdateInstances(_ *create.CreateContext, updates []create.UpdateData) error {
	for _, update := range updates {
		if err := c.adapter.SaveInstanceRecord(update.Instance.ID(), update.Instance.DataToStore()); err != nil {
			return fmt.Errorf("store workfile instance %s: %w", update.Instance.ID(), err)
		}
	}
	return nil
}

func (c *Creator) RemoveInstances(cc *create.CreateContext, instances []*create.CreatedInstance) error {
	for _, instance := range instances {
		if err := c.adapter.DeleteInstanceRecord(instance.ID()); err != nil {
			return fmt.Errorf("delete workfile instance %s: %w", instance.ID(), err)
		}
		cc.DropInstance(instance)
	}
	return nil
}
