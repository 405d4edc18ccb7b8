package create

import "slices"

// BulkKind names one batching channel of the context.
type BulkKind string

const (
	bulkAdd                  BulkKind = "add"
	bulkRemove               BulkKind = "remove"
	bulkChange               BulkKind = "change"
	bulkPreCreateAttrsChange BulkKind = "pre_create_attrs_change"
	bulkCreateAttrsChange    BulkKind = "create_attrs_change"
	bulkPublishAttrsChange   BulkKind = "publish_attrs_change"
)

var allBulkKinds = []BulkKind{
	bulkAdd,
	bulkRemove,
	bulkChange,
	bulkPreCreateAttrsChange,
	bulkCreateAttrsChange,
	bulkPublishAttrsChange,
}

// BulkInfo accumulates the payload of one batching channel while scopes of
// its kind are open. The counter tracks open nesting depth.
type BulkInfo struct {
	count  int
	data   []any
	sender string
}

// Append adds one payload item to the batch.
func (b *BulkInfo) Append(item any) { b.data = append(b.data, item) }

// Sender returns the sender recorded for the batch.
func (b *BulkInfo) Sender() string { return b.sender }

func (b *BulkInfo) increase()  { b.count++ }
func (b *BulkInfo) decrease()  { b.count-- }
func (b *BulkInfo) idle() bool { return b.count == 0 }

// setSender keeps the last non-empty sender of the nesting stack.
func (b *BulkInfo) setSender(sender string) {
	if sender != "" {
		b.sender = sender
	}
}

func (b *BulkInfo) pop() ([]any, string) {
	data, sender := b.data, b.sender
	b.data = nil
	b.sender = ""
	return data, sender
}

// InstanceChange pairs an entity with its merged value changes inside a
// values-changed notification. Instance is nil for context level changes.
type InstanceChange struct {
	Instance *CreatedInstance
	Changes  map[string]any
}

// bulk runs fn inside an open scope of the kind. The first scope of a kind
// inside the current stack records the kind's flush position; payloads only
// flush once every scope of the kind closed and every kind opened before it
// has flushed, so notification order follows scope-opening order no matter
// how scopes nest.
func (c *CreateContext) bulk(kind BulkKind, sender string, fn func(*BulkInfo) error) error {
	info := c.bulkInfo[kind]
	info.increase()
	info.setSender(sender)
	if !slices.Contains(c.bulkOrder, kind) {
		c.bulkOrder = append(c.bulkOrder, kind)
	}
	defer func() {
		info.decrease()
		if info.idle() {
			c.bulkFinished(kind)
		}
	}()
	return fn(info)
}

// bulkFinished flushes the kind when it reached the head of the flush order,
// then keeps flushing queued kinds as long as they are idle.
func (c *CreateContext) bulkFinished(kind BulkKind) {
	if len(c.bulkOrder) == 0 || c.bulkOrder[0] != kind {
		return
	}
	c.bulkOrder = c.bulkOrder[1:]
	c.bulkFinish(kind)
	for len(c.bulkOrder) > 0 {
		head := c.bulkOrder[0]
		if !c.bulkInfo[head].idle() {
			break
		}
		c.bulkOrder = c.bulkOrder[1:]
		c.bulkFinish(head)
	}
}

func (c *CreateContext) bulkFinish(kind BulkKind) {
	data, sender := c.bulkInfo[kind].pop()
	if len(data) == 0 {
		return
	}
	switch kind {
	case bulkAdd:
		c.bulkAddFinished(data, sender)
	case bulkRemove:
		c.emitInstanceList(TopicInstancesRemoved, data, sender)
	case bulkChange:
		c.bulkValuesChangeFinished(data, sender)
	case bulkPreCreateAttrsChange:
		c.emitIdentifierList(TopicPreCreateAttrsChanged, data, sender)
	case bulkCreateAttrsChange:
		c.emitInstanceList(TopicCreateAttrsChanged, data, sender)
	case bulkPublishAttrsChange:
		c.emitInstanceList(TopicPublishAttrsChanged, data, sender)
	}
}

// bulkAddFinished binds registered publish plugin definitions to the new
// instances before anyone observes them, then announces them.
func (c *CreateContext) bulkAddFinished(data []any, sender string) {
	instances := uniqueInstances(data)
	for _, instance := range instances {
		for _, plugin := range c.publishPlugins {
			defs := plugin.InstanceAttrDefs(instance)
			if defs != nil {
				instance.publishAttributes.SetPluginAttrDefs(plugin.Name(), defs)
			}
		}
	}
	c.emit(TopicInstancesAdded, sender, map[string]any{"instances": instances})
}

func (c *CreateContext) bulkValuesChangeFinished(data []any, sender string) {
	var order []*CreatedInstance
	merged := map[*CreatedInstance]map[string]any{}
	contextSeen := false
	var contextChanges map[string]any
	for _, item := range data {
		change, ok := item.(InstanceChange)
		if !ok {
			continue
		}
		if change.Instance == nil {
			if !contextSeen {
				contextSeen = true
				contextChanges = map[string]any{}
			}
			mergeValueChanges(contextChanges, change.Changes)
			continue
		}
		existing, ok := merged[change.Instance]
		if !ok {
			existing = map[string]any{}
			merged[change.Instance] = existing
			order = append(order, change.Instance)
		}
		mergeValueChanges(existing, change.Changes)
	}

	var changes []InstanceChange
	if contextSeen {
		changes = append(changes, InstanceChange{Changes: contextChanges})
	}
	for _, instance := range order {
		changes = append(changes, InstanceChange{Instance: instance, Changes: merged[instance]})
	}
	c.emit(TopicValuesChanged, sender, map[string]any{"changes": changes})
}

// mergeValueChanges folds newer changes into older ones. The attribute
// container keys merge one level deeper so repeated attribute edits collapse
// into a single nested report per instance.
func mergeValueChanges(target, source map[string]any) {
	for key, value := range source {
		switch key {
		case keyCreatorAttributes:
			mergeNested(target, key, value)
		case keyPublishAttributes:
			existing, ok := target[key].(map[string]any)
			if !ok {
				target[key] = value
				continue
			}
			newValue, ok := value.(map[string]any)
			if !ok {
				target[key] = value
				continue
			}
			for pluginName, pluginChanges := range newValue {
				mergeNested(existing, pluginName, pluginChanges)
			}
		default:
			target[key] = value
		}
	}
}

func mergeNested(target map[string]any, key string, value any) {
	existing, ok := target[key].(map[string]any)
	if !ok {
		target[key] = value
		return
	}
	newValue, ok := value.(map[string]any)
	if !ok {
		target[key] = value
		return
	}
	for nestedKey, nestedValue := range newValue {
		existing[nestedKey] = nestedValue
	}
}

func (c *CreateContext) emitInstanceList(topic string, data []any, sender string) {
	c.emit(topic, sender, map[string]any{"instances": uniqueInstances(data)})
}

func (c *CreateContext) emitIdentifierList(topic string, data []any, sender string) {
	var identifiers []string
	for _, item := range data {
		identifier, ok := item.(string)
		if !ok || slices.Contains(identifiers, identifier) {
			continue
		}
		identifiers = append(identifiers, identifier)
	}
	c.emit(topic, sender, map[string]any{"identifiers": identifiers})
}

func uniqueInstances(data []any) []*CreatedInstance {
	var instances []*CreatedInstance
	seen := map[*CreatedInstance]struct{}{}
	for _, item := range data {
		instance, ok := item.(*CreatedInstance)
		if !ok {
			continue
		}
		if _, dup := seen[instance]; dup {
			continue
		}
		seen[instance] = struct{}{}
		instances = append(instances, instance)
	}
	return instances
}

// BulkAddInstances batches instance additions made inside fn into a single
// notification.
func (c *CreateContext) BulkAddInstances(sender string, fn func() error) error {
	return c.bulk(bulkAdd, sender, func(*BulkInfo) error { return fn() })
}

// BulkRemoveInstances batches instance removals made inside fn into a single
// notification.
func (c *CreateContext) BulkRemoveInstances(sender string, fn func() error) error {
	return c.bulk(bulkRemove, sender, func(*BulkInfo) error { return fn() })
}

// BulkValueChanges batches value edits made inside fn into a single
// notification.
func (c *CreateContext) BulkValueChanges(sender string, fn func() error) error {
	return c.bulk(bulkChange, sender, func(*BulkInfo) error { return fn() })
}

// BulkPreCreateAttrDefsChange batches pre-create definition changes made
// inside fn into a single notification.
func (c *CreateContext) BulkPreCreateAttrDefsChange(sender string, fn func() error) error {
	return c.bulk(bulkPreCreateAttrsChange, sender, func(*BulkInfo) error { return fn() })
}

// BulkCreateAttrDefsChange batches creator definition changes made inside fn
// into a single notification.
func (c *CreateContext) BulkCreateAttrDefsChange(sender string, fn func() error) error {
	return c.bulk(bulkCreateAttrsChange, sender, func(*BulkInfo) error { return fn() })
}

// BulkPublishAttrDefsChange batches publish definition changes made inside
// fn into a single notification.
func (c *CreateContext) BulkPublishAttrDefsChange(sender string, fn func() error) error {
	return c.bulk(bulkPublishAttrsChange, sender, func(*BulkInfo) error { return fn() })
}
