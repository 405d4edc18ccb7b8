package create

import (
	"sort"

	"publishcore/pkg/attrdef"
	"publishcore/pkg/domain"
)

// attributeOwner receives change reports from an attribute container. The
// key is the container's key inside the owner and changes map attribute
// keys to their new values (nil for removed values).
type attributeOwner interface {
	attributeValueChanged(key string, changes map[string]any)
}

// publishAttributesOwner receives change reports scoped to one publish
// plugin.
type publishAttributesOwner interface {
	publishAttributesValueChanged(pluginName string, changes map[string]any)
}

// AttributeValues holds values of a set of attribute definitions. Values of
// keys without a matching definition are kept behind synthesized UnknownDef
// placeholders so foreign data survives a load and store round trip.
type AttributeValues struct {
	owner     attributeOwner
	key       string
	defs      []attrdef.Def
	defsByKey map[string]attrdef.Def
	data      map[string]any
	origin    map[string]any
}

func newAttributeValues(owner attributeOwner, key string, defs []attrdef.Def, values, origin map[string]any) *AttributeValues {
	a := &AttributeValues{
		owner:     owner,
		key:       key,
		defs:      make([]attrdef.Def, 0, len(defs)),
		defsByKey: map[string]attrdef.Def{},
		data:      map[string]any{},
	}
	for _, def := range defs {
		a.defs = append(a.defs, def)
		if def.IsValueDef() {
			a.defsByKey[def.Key()] = def
		}
	}
	for valueKey, value := range values {
		def, ok := a.defsByKey[valueKey]
		if !ok {
			def = attrdef.NewUnknownDef(valueKey, nil)
			a.defs = append(a.defs, def)
			a.defsByKey[valueKey] = def
			a.data[valueKey] = domain.DeepCopy(value)
			continue
		}
		// Values are coerced through their definition. Invalid values
		// fall back to the definition default.
		a.data[valueKey] = domain.DeepCopy(def.ConvertValue(value))
	}
	if origin != nil {
		a.origin = domain.DeepCopyMap(origin)
	} else {
		a.origin = a.DataToStore()
	}
	return a
}

// Defs returns the definitions in registration order, placeholders included.
func (a *AttributeValues) Defs() []attrdef.Def {
	return append([]attrdef.Def(nil), a.defs...)
}

// DefByKey returns the definition stored under the key.
func (a *AttributeValues) DefByKey(key string) (attrdef.Def, bool) {
	def, ok := a.defsByKey[key]
	return def, ok
}

// Keys returns the keys of all value definitions, sorted.
func (a *AttributeValues) Keys() []string {
	keys := make([]string, 0, len(a.defsByKey))
	for key := range a.defsByKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the effective value of the key. Keys without an explicit value
// fall back to the definition default.
func (a *AttributeValues) Get(key string) (any, bool) {
	if value, ok := a.data[key]; ok {
		return domain.DeepCopy(value), true
	}
	if def, ok := a.defsByKey[key]; ok {
		return domain.DeepCopy(def.Default()), true
	}
	return nil, false
}

// Value returns the effective value of the key, nil when unknown.
func (a *AttributeValues) Value(key string) any {
	value, _ := a.Get(key)
	return value
}

// Set stores a value. Keys without a definition are widened with an
// UnknownDef placeholder instead of being rejected. The owner is notified
// when the effective value changed.
func (a *AttributeValues) Set(key string, value any) {
	a.Update(map[string]any{key: value})
}

// Update applies multiple values at once and reports the changed subset to
// the owner in a single notification.
func (a *AttributeValues) Update(values map[string]any) {
	changes := map[string]any{}
	for key, value := range values {
		def, known := a.defsByKey[key]
		if !known {
			def = attrdef.NewUnknownDef(key, nil)
			a.defs = append(a.defs, def)
			a.defsByKey[key] = def
		}
		coerced := def.ConvertValue(value)
		if current, ok := a.data[key]; known && ok && domain.DeepEqual(current, coerced) {
			continue
		}
		a.data[key] = domain.DeepCopy(coerced)
		changes[key] = domain.DeepCopy(coerced)
	}
	a.reportChanges(changes)
}

// Remove drops the explicit value of the key. Placeholder definitions created
// for unknown keys are dropped with their value, regular definitions stay and
// the key falls back to its default.
func (a *AttributeValues) Remove(key string) {
	def, known := a.defsByKey[key]
	_, hasValue := a.data[key]
	if !known && !hasValue {
		return
	}
	delete(a.data, key)
	if _, placeholder := def.(*attrdef.UnknownDef); placeholder {
		delete(a.defsByKey, key)
		for i, item := range a.defs {
			if item == def {
				a.defs = append(a.defs[:i], a.defs[i+1:]...)
				break
			}
		}
	}
	a.reportChanges(map[string]any{key: nil})
}

func (a *AttributeValues) reportChanges(changes map[string]any) {
	if len(changes) == 0 || a.owner == nil {
		return
	}
	a.owner.attributeValueChanged(a.key, changes)
}

// DataToStore returns the persistable view: explicit values merged over the
// defaults of all value definitions.
func (a *AttributeValues) DataToStore() map[string]any {
	output := map[string]any{}
	for key, def := range a.defsByKey {
		output[key] = domain.DeepCopy(def.Default())
	}
	for key, value := range a.data {
		output[key] = domain.DeepCopy(value)
	}
	return output
}

// Origin returns the last stored state of the container.
func (a *AttributeValues) Origin() map[string]any {
	return domain.DeepCopyMap(a.origin)
}

// MarkAsStored resets the origin state to the current persistable view.
func (a *AttributeValues) MarkAsStored() {
	a.origin = a.DataToStore()
}

func (a *AttributeValues) explicitData() map[string]any {
	return domain.DeepCopyMap(a.data)
}

// PublishAttributes groups per-plugin attribute values of one entity. Until a
// plugin registers its definitions the plugin's data is kept as an opaque
// map, again so foreign records survive round trips.
type PublishAttributes struct {
	owner  publishAttributesOwner
	data   map[string]any
	origin map[string]any
}

func newPublishAttributes(owner publishAttributesOwner, values map[string]any) *PublishAttributes {
	p := &PublishAttributes{
		owner:  owner,
		data:   map[string]any{},
		origin: domain.DeepCopyMap(values),
	}
	for pluginName, value := range values {
		p.data[pluginName] = domain.DeepCopy(value)
	}
	return p
}

// PluginNames returns the plugins with stored attribute data, sorted.
func (p *PublishAttributes) PluginNames() []string {
	names := make([]string, 0, len(p.data))
	for name := range p.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plugin returns the attribute container of the plugin, nil when the plugin
// has not registered definitions yet.
func (p *PublishAttributes) Plugin(pluginName string) *AttributeValues {
	values, _ := p.data[pluginName].(*AttributeValues)
	return values
}

// Get returns the stored data of the plugin. The value is a deep copy of the
// raw data, or the live AttributeValues container when definitions exist.
func (p *PublishAttributes) Get(pluginName string) (any, bool) {
	value, ok := p.data[pluginName]
	if !ok {
		return nil, false
	}
	if values, isContainer := value.(*AttributeValues); isContainer {
		return values, true
	}
	return domain.DeepCopy(value), true
}

// Pop removes the plugin's data and returns the removed persistable view.
// Plugins with registered definitions are reset to defaults instead of being
// removed so their schema stays attached.
func (p *PublishAttributes) Pop(pluginName string) any {
	value, ok := p.data[pluginName]
	if !ok {
		return nil
	}
	values, isContainer := value.(*AttributeValues)
	if !isContainer {
		delete(p.data, pluginName)
		p.attributeValueChanged(pluginName, nil)
		return value
	}
	output := values.DataToStore()
	for key := range values.explicitData() {
		values.Remove(key)
	}
	return output
}

// SetPluginAttrDefs attaches attribute definitions to the plugin, converting
// any previously stored raw data into a typed container.
func (p *PublishAttributes) SetPluginAttrDefs(pluginName string, defs []attrdef.Def) {
	var values map[string]any
	switch typed := p.data[pluginName].(type) {
	case *AttributeValues:
		values = typed.explicitData()
	case map[string]any:
		values = typed
	}
	var origin map[string]any
	if stored, ok := domain.AsMap(p.origin[pluginName]); ok {
		origin = stored
	}
	p.data[pluginName] = newAttributeValues(p, pluginName, defs, values, origin)
}

// attributeValueChanged implements attributeOwner for the per-plugin
// containers and forwards the change scoped by plugin name.
func (p *PublishAttributes) attributeValueChanged(pluginName string, changes map[string]any) {
	if p.owner == nil {
		return
	}
	p.owner.publishAttributesValueChanged(pluginName, changes)
}

// DataToStore returns the persistable view of all plugins.
func (p *PublishAttributes) DataToStore() map[string]any {
	output := map[string]any{}
	for pluginName, value := range p.data {
		if values, ok := value.(*AttributeValues); ok {
			output[pluginName] = values.DataToStore()
		} else {
			output[pluginName] = domain.DeepCopy(value)
		}
	}
	return output
}

// Origin returns the last stored state.
func (p *PublishAttributes) Origin() map[string]any {
	return domain.DeepCopyMap(p.origin)
}

// MarkAsStored resets the origin state to the current persistable view.
func (p *PublishAttributes) MarkAsStored() {
	p.origin = p.DataToStore()
}
