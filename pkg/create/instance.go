package create

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"publishcore/pkg/attrdef"
	"publishcore/pkg/domain"
)

const (
	keyID                = "id"
	keyInstanceID        = "instance_id"
	keyProductType       = "productType"
	keyProductName       = "productName"
	keyCreatorIdentifier = "creator_identifier"
	keyCreatorAttributes = "creator_attributes"
	keyPublishAttributes = "publish_attributes"
	keyFolderPath        = "folderPath"
	keyTask              = "task"
	keyActive            = "active"
	keyVariant           = "variant"
)

// instanceIDValue marks records produced by this authoring core.
const instanceIDValue = "pyblish.avalon.instance"

var immutableKeys = map[string]struct{}{
	keyID:                {},
	keyProductType:       {},
	keyCreatorIdentifier: {},
	keyCreatorAttributes: {},
	keyPublishAttributes: {},
}

// requiredKeys are always present on an instance. Removing one resets it to
// the listed default instead of dropping the key.
var requiredKeys = map[string]any{
	keyFolderPath:  nil,
	keyTask:        nil,
	keyProductName: nil,
	keyActive:      true,
}

// legacy keys kept out of the data map entirely
var discardedKeys = map[string]struct{}{
	"family": {},
	"subset": {},
}

// CreatedInstance is a single unit of publishable content. Its generic data
// lives in a flat map while the two attribute containers are held as typed
// fields and surfaced in the persistable view under their reserved keys.
type CreatedInstance struct {
	creatorIdentifier string
	creatorLabel      string
	context           *CreateContext

	data       map[string]any
	originData map[string]any

	creatorAttributes *AttributeValues
	publishAttributes *PublishAttributes

	// transientData carries in-memory values never persisted with the
	// instance, typically host-native object handles.
	transientData map[string]any
}

func newCreatedInstance(
	context *CreateContext,
	creator Creator,
	productType string,
	data map[string]any,
) *CreatedInstance {
	inst := &CreatedInstance{
		context:       context,
		data:          map[string]any{},
		transientData: map[string]any{},
	}
	if creator != nil {
		inst.creatorIdentifier = creator.Identifier()
		inst.creatorLabel = creator.Label()
	}

	var creatorValues map[string]any
	var publishValues map[string]any
	for key, value := range data {
		if _, discarded := discardedKeys[key]; discarded {
			continue
		}
		switch key {
		case keyCreatorAttributes:
			creatorValues, _ = domain.AsMap(value)
		case keyPublishAttributes:
			publishValues, _ = domain.AsMap(value)
		default:
			inst.data[key] = domain.DeepCopy(value)
		}
	}

	inst.data[keyInstanceID] = instanceIDValue
	if _, ok := inst.data[keyID].(string); !ok {
		inst.data[keyID] = uuid.NewString()
	}
	inst.data[keyProductType] = productType
	inst.data[keyCreatorIdentifier] = inst.creatorIdentifier
	for key, def := range requiredKeys {
		if _, ok := inst.data[key]; !ok {
			inst.data[key] = def
		}
	}

	var creatorDefs []attrdef.Def
	if creator != nil {
		creatorDefs = creator.InstanceAttrDefs(inst)
	}
	inst.creatorAttributes = newAttributeValues(inst, keyCreatorAttributes, creatorDefs, creatorValues, nil)
	inst.publishAttributes = newPublishAttributes(inst, publishValues)
	inst.originData = inst.DataToStore()
	return inst
}

// ID returns the stable identifier of the instance.
func (i *CreatedInstance) ID() string {
	id, _ := i.data[keyID].(string)
	return id
}

// ProductType returns the kind of content the instance publishes.
func (i *CreatedInstance) ProductType() string {
	value, _ := i.data[keyProductType].(string)
	return value
}

// ProductName returns the publish name of the instance.
func (i *CreatedInstance) ProductName() string {
	value, _ := i.data[keyProductName].(string)
	return value
}

// CreatorIdentifier returns the identifier of the strategy that owns the
// instance.
func (i *CreatedInstance) CreatorIdentifier() string { return i.creatorIdentifier }

// CreatorLabel returns the display label of the owning strategy.
func (i *CreatedInstance) CreatorLabel() string {
	if i.creatorLabel != "" {
		return i.creatorLabel
	}
	return i.creatorIdentifier
}

// Label returns the display label of the instance itself.
func (i *CreatedInstance) Label() string {
	if label, ok := i.data["label"].(string); ok && label != "" {
		return label
	}
	return i.ProductName()
}

// Active reports whether the instance takes part in publishing.
func (i *CreatedInstance) Active() bool {
	active, ok := i.data[keyActive].(bool)
	return !ok || active
}

// HasPromisedContext reports whether folder and task are filled in.
func (i *CreatedInstance) HasPromisedContext() bool {
	folder, _ := i.data[keyFolderPath].(string)
	task, _ := i.data[keyTask].(string)
	return folder != "" && task != ""
}

// Value returns a deep copy of a generic data value.
func (i *CreatedInstance) Value(key string) (any, bool) {
	value, ok := i.data[key]
	if !ok {
		return nil, false
	}
	return domain.DeepCopy(value), true
}

// Keys returns the generic data keys plus the reserved attribute keys,
// sorted.
func (i *CreatedInstance) Keys() []string {
	keys := make([]string, 0, len(i.data)+2)
	for key := range i.data {
		keys = append(keys, key)
	}
	keys = append(keys, keyCreatorAttributes, keyPublishAttributes)
	sort.Strings(keys)
	return keys
}

// SetValue stores a generic data value. Writing an immutable key is a no-op
// when the value is unchanged and an ImmutableKeyError otherwise.
func (i *CreatedInstance) SetValue(key string, value any) error {
	if _, immutable := immutableKeys[key]; immutable {
		if domain.DeepEqual(i.data[key], value) {
			return nil
		}
		return &ImmutableKeyError{Key: key}
	}
	if current, ok := i.data[key]; ok && domain.DeepEqual(current, value) {
		return nil
	}
	i.data[key] = domain.DeepCopy(value)
	i.reportValuesChanged(map[string]any{key: domain.DeepCopy(value)})
	return nil
}

// Update applies several generic data values at once, failing fast on the
// first immutable violation before anything is written.
func (i *CreatedInstance) Update(values map[string]any) error {
	for key, value := range values {
		if _, immutable := immutableKeys[key]; !immutable {
			continue
		}
		if !domain.DeepEqual(i.data[key], value) {
			return &ImmutableKeyError{Key: key}
		}
	}
	changes := map[string]any{}
	for key, value := range values {
		if _, immutable := immutableKeys[key]; immutable {
			continue
		}
		if current, ok := i.data[key]; ok && domain.DeepEqual(current, value) {
			continue
		}
		i.data[key] = domain.DeepCopy(value)
		changes[key] = domain.DeepCopy(value)
	}
	i.reportValuesChanged(changes)
	return nil
}

// RemoveValue drops a generic data value. Required keys are reset to their
// default instead of being removed, immutable keys cannot be removed at all.
func (i *CreatedInstance) RemoveValue(key string) error {
	if _, immutable := immutableKeys[key]; immutable {
		return &ImmutableKeyError{Key: key}
	}
	if def, required := requiredKeys[key]; required {
		if domain.DeepEqual(i.data[key], def) {
			return nil
		}
		i.data[key] = def
		i.reportValuesChanged(map[string]any{key: def})
		return nil
	}
	if _, ok := i.data[key]; !ok {
		return nil
	}
	delete(i.data, key)
	i.reportValuesChanged(map[string]any{key: nil})
	return nil
}

// CreatorAttributes returns the strategy-owned attribute container.
func (i *CreatedInstance) CreatorAttributes() *AttributeValues { return i.creatorAttributes }

// PublishAttributes returns the per-plugin attribute container.
func (i *CreatedInstance) PublishAttributes() *PublishAttributes { return i.publishAttributes }

// TransientData returns the live in-memory side channel of the instance.
// The returned map is shared, not copied, and is never persisted.
func (i *CreatedInstance) TransientData() map[string]any { return i.transientData }

// DataToStore returns the full persistable view of the instance.
func (i *CreatedInstance) DataToStore() map[string]any {
	output := domain.DeepCopyMap(i.data)
	output[keyCreatorAttributes] = i.creatorAttributes.DataToStore()
	output[keyPublishAttributes] = i.publishAttributes.DataToStore()
	return output
}

// OriginData returns the persistable view captured at the last store.
func (i *CreatedInstance) OriginData() map[string]any {
	return domain.DeepCopyMap(i.originData)
}

// Changes returns the structural diff between the last stored state and the
// current persistable view.
func (i *CreatedInstance) Changes() *domain.Changes {
	return domain.NewChanges(i.originData, i.DataToStore())
}

// HasChanges reports whether the instance diverged from its stored state.
func (i *CreatedInstance) HasChanges() bool {
	return i.Changes().Changed()
}

// MarkAsStored captures the current persistable view as the new origin.
func (i *CreatedInstance) MarkAsStored() {
	i.originData = i.DataToStore()
	i.creatorAttributes.MarkAsStored()
	i.publishAttributes.MarkAsStored()
}

// SetCreateAttrDefs replaces the creator attribute definitions, keeping
// explicit values that the new definitions accept.
func (i *CreatedInstance) SetCreateAttrDefs(defs []attrdef.Def) {
	current := i.creatorAttributes
	i.creatorAttributes = newAttributeValues(i, keyCreatorAttributes, defs, current.explicitData(), current.origin)
	if i.context != nil {
		i.context.instanceCreateAttrDefsChanged(i)
	}
}

// SetPublishPluginAttrDefs attaches publish plugin definitions to the
// instance's publish attributes.
func (i *CreatedInstance) SetPublishPluginAttrDefs(pluginName string, defs []attrdef.Def) {
	i.publishAttributes.SetPluginAttrDefs(pluginName, defs)
	if i.context != nil {
		i.context.instancePublishAttrDefsChanged(i, pluginName)
	}
}

// attributeValueChanged implements attributeOwner for creator attributes.
func (i *CreatedInstance) attributeValueChanged(key string, changes map[string]any) {
	i.reportValuesChanged(map[string]any{key: changes})
}

// publishAttributesValueChanged implements publishAttributesOwner.
func (i *CreatedInstance) publishAttributesValueChanged(pluginName string, changes map[string]any) {
	i.reportValuesChanged(map[string]any{
		keyPublishAttributes: map[string]any{pluginName: changes},
	})
}

func (i *CreatedInstance) reportValuesChanged(changes map[string]any) {
	if len(changes) == 0 || i.context == nil {
		return
	}
	i.context.instanceValuesChanged(i, changes)
}

func (i *CreatedInstance) String() string {
	return fmt.Sprintf("CreatedInstance(%s[%s])", i.ProductName(), i.ID())
}
