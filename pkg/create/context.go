// Package create implements the authoring core for publishable content.
// A CreateContext orchestrates pluggable creation strategies, tracks the
// instances they own, batches change notifications and persists everything
// through a host adapter.
package create

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"

	"publishcore/pkg/domain"
)

// CreateContext is the orchestrator. It is not safe for concurrent use; all
// interaction is expected from the host application's main thread.
type CreateContext struct {
	host    HostAdapter
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	hub     *EventHub

	creators       map[string]Creator
	creatorOrder   []string
	convertors     map[string]Convertor
	convertorOrder []string
	publishPlugins []PublishPlugin

	instancesByID map[string]*CreatedInstance
	instanceOrder []string

	convertorItems map[string]*ConvertorItem

	contextData         map[string]any
	publishAttributes   *PublishAttributes
	originalContextData map[string]any

	bulkInfo  map[BulkKind]*BulkInfo
	bulkOrder []BulkKind

	// collectionSharedData is non-nil only while a reset collects, so
	// creators can pass expensive host lookups to each other.
	collectionSharedData map[string]any

	resetCount int
}

// Option configures a CreateContext.
type Option func(*CreateContext)

// WithLogger installs the logger used for event callback and plugin
// diagnostics.
func WithLogger(logger Logger) Option {
	return func(c *CreateContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetricsRecorder installs a metrics sink for orchestrator operations.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(c *CreateContext) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracer installs a tracer for orchestrator operations.
func WithTracer(tracer Tracer) Option {
	return func(c *CreateContext) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewCreateContext builds a context on top of the host adapter. The context
// is empty until the first Reset.
func NewCreateContext(host HostAdapter, opts ...Option) *CreateContext {
	c := &CreateContext{
		host:           host,
		logger:         noopLogger{},
		metrics:        noopMetricsRecorder{},
		tracer:         noopTracer{},
		creators:       map[string]Creator{},
		convertors:     map[string]Convertor{},
		instancesByID:  map[string]*CreatedInstance{},
		convertorItems: map[string]*ConvertorItem{},
		contextData:    map[string]any{},
		bulkInfo:       map[BulkKind]*BulkInfo{},
	}
	for _, kind := range allBulkKinds {
		c.bulkInfo[kind] = &BulkInfo{}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hub = NewEventHub(c.logger)
	c.publishAttributes = newPublishAttributes(c, nil)
	c.originalContextData = c.ContextDataToStore()
	return c
}

// Host returns the host adapter the context persists through.
func (c *CreateContext) Host() HostAdapter { return c.host }

// Hub returns the event hub of the context.
func (c *CreateContext) Hub() *EventHub { return c.hub }

// Logger returns the context logger.
func (c *CreateContext) Logger() Logger { return c.logger }

// RegisterCreator adds a creation strategy. Identifiers must be unique.
func (c *CreateContext) RegisterCreator(creator Creator) error {
	identifier := creator.Identifier()
	if identifier == "" {
		return errors.New("creator identifier must not be empty")
	}
	if _, exists := c.creators[identifier]; exists {
		return fmt.Errorf("creator %q is already registered", identifier)
	}
	c.creators[identifier] = creator
	c.creatorOrder = append(c.creatorOrder, identifier)
	return nil
}

// RegisterConvertor adds a legacy-instance convertor.
func (c *CreateContext) RegisterConvertor(convertor Convertor) error {
	identifier := convertor.Identifier()
	if identifier == "" {
		return errors.New("convertor identifier must not be empty")
	}
	if _, exists := c.convertors[identifier]; exists {
		return fmt.Errorf("convertor %q is already registered", identifier)
	}
	c.convertors[identifier] = convertor
	c.convertorOrder = append(c.convertorOrder, identifier)
	return nil
}

// RegisterPublishPlugin adds a publish plugin whose attribute definitions
// get bound to matching instances and to the context.
func (c *CreateContext) RegisterPublishPlugin(plugin PublishPlugin) error {
	name := plugin.Name()
	if name == "" {
		return errors.New("publish plugin name must not be empty")
	}
	for _, existing := range c.publishPlugins {
		if existing.Name() == name {
			return fmt.Errorf("publish plugin %q is already registered", name)
		}
	}
	c.publishPlugins = append(c.publishPlugins, plugin)
	return nil
}

// Creator returns the registered strategy with the identifier.
func (c *CreateContext) Creator(identifier string) (Creator, bool) {
	creator, ok := c.creators[identifier]
	return creator, ok
}

// Creators returns all registered strategies sorted by order, then
// identifier.
func (c *CreateContext) Creators() []Creator {
	creators := make([]Creator, 0, len(c.creators))
	for _, identifier := range c.creatorOrder {
		creators = append(creators, c.creators[identifier])
	}
	sort.SliceStable(creators, func(a, b int) bool {
		if creators[a].Order() != creators[b].Order() {
			return creators[a].Order() < creators[b].Order()
		}
		return creators[a].Identifier() < creators[b].Identifier()
	})
	return creators
}

// ManualCreators returns the strategies a user can trigger directly. Hidden
// creators are excluded.
func (c *CreateContext) ManualCreators() []ManualCreator {
	var manual []ManualCreator
	for _, creator := range c.Creators() {
		if _, hidden := creator.(HiddenCreator); hidden {
			continue
		}
		if typed, ok := creator.(ManualCreator); ok {
			manual = append(manual, typed)
		}
	}
	return manual
}

// AutoCreators returns the strategies that create their instance on reset.
func (c *CreateContext) AutoCreators() []AutoCreator {
	var auto []AutoCreator
	for _, creator := range c.Creators() {
		if typed, ok := creator.(AutoCreator); ok {
			auto = append(auto, typed)
		}
	}
	return auto
}

// Instances returns the registered instances in registration order.
func (c *CreateContext) Instances() []*CreatedInstance {
	instances := make([]*CreatedInstance, 0, len(c.instanceOrder))
	for _, id := range c.instanceOrder {
		if instance, ok := c.instancesByID[id]; ok {
			instances = append(instances, instance)
		}
	}
	return instances
}

// InstanceByID returns the registered instance with the id.
func (c *CreateContext) InstanceByID(id string) (*CreatedInstance, bool) {
	instance, ok := c.instancesByID[id]
	return instance, ok
}

// ConvertorItems returns the convertible content discovered by the last
// reset.
func (c *CreateContext) ConvertorItems() []*ConvertorItem {
	items := make([]*ConvertorItem, 0, len(c.convertorItems))
	for _, identifier := range c.convertorOrder {
		if item, ok := c.convertorItems[identifier]; ok {
			items = append(items, item)
		}
	}
	return items
}

// AddConvertorItem registers discovered convertible content. Called by
// convertors from FindInstances.
func (c *CreateContext) AddConvertorItem(item *ConvertorItem) {
	c.convertorItems[item.Identifier()] = item
}

// ResetCount returns how many resets completed.
func (c *CreateContext) ResetCount() int { return c.resetCount }

// NewInstance builds an unregistered instance owned by the creator. The
// caller registers it with AddInstance once it exists in the host.
func (c *CreateContext) NewInstance(creator Creator, productType, productName string, data map[string]any) *CreatedInstance {
	merged := domain.DeepCopyMap(data)
	if merged == nil {
		merged = map[string]any{}
	}
	merged[keyProductName] = productName
	return newCreatedInstance(c, creator, productType, merged)
}

// NewInstanceFromExisting rebuilds an instance from previously stored data.
// The product type is read from the data itself.
func (c *CreateContext) NewInstanceFromExisting(creator Creator, data map[string]any) *CreatedInstance {
	productType, _ := data[keyProductType].(string)
	return newCreatedInstance(c, creator, productType, data)
}

// AddInstance registers an instance on the context and queues its
// announcement on the add batch.
func (c *CreateContext) AddInstance(instance *CreatedInstance) error {
	if instance.ID() == "" {
		return errors.New("instance is missing an id")
	}
	if instance.ProductType() == "" {
		return fmt.Errorf("instance %q is missing a product type", instance.ID())
	}
	if existing, ok := c.instancesByID[instance.ID()]; ok && existing != instance {
		return fmt.Errorf("instance id %q is already registered", instance.ID())
	}
	if _, ok := c.instancesByID[instance.ID()]; !ok {
		c.instancesByID[instance.ID()] = instance
		c.instanceOrder = append(c.instanceOrder, instance.ID())
	}
	return c.bulk(bulkAdd, "", func(info *BulkInfo) error {
		info.Append(instance)
		return nil
	})
}

// DropInstance unregisters an instance after its creator removed it from the
// host and queues its announcement on the remove batch.
func (c *CreateContext) DropInstance(instance *CreatedInstance) {
	if _, ok := c.instancesByID[instance.ID()]; !ok {
		return
	}
	delete(c.instancesByID, instance.ID())
	for i, id := range c.instanceOrder {
		if id == instance.ID() {
			c.instanceOrder = append(c.instanceOrder[:i], c.instanceOrder[i+1:]...)
			break
		}
	}
	_ = c.bulk(bulkRemove, "", func(info *BulkInfo) error {
		info.Append(instance)
		return nil
	})
}

// CollectionSharedData returns a value creators shared during collection.
// Outside of collection the data is unavailable.
func (c *CreateContext) CollectionSharedData(key string) (any, error) {
	if c.collectionSharedData == nil {
		return nil, &UnavailableSharedDataError{}
	}
	return c.collectionSharedData[key], nil
}

// SetCollectionSharedData shares a value with creators collected later in
// the same reset.
func (c *CreateContext) SetCollectionSharedData(key string, value any) error {
	if c.collectionSharedData == nil {
		return &UnavailableSharedDataError{}
	}
	c.collectionSharedData[key] = value
	return nil
}

// ContextValue returns a context-level data value.
func (c *CreateContext) ContextValue(key string) (any, bool) {
	value, ok := c.contextData[key]
	if !ok {
		return nil, false
	}
	return domain.DeepCopy(value), true
}

// SetContextValue stores a context-level data value and reports the change.
func (c *CreateContext) SetContextValue(key string, value any) {
	if key == keyPublishAttributes {
		return
	}
	if current, ok := c.contextData[key]; ok && domain.DeepEqual(current, value) {
		return
	}
	c.contextData[key] = domain.DeepCopy(value)
	c.contextValuesChanged(map[string]any{key: domain.DeepCopy(value)})
}

// PublishAttributes returns the context-level publish attribute container.
func (c *CreateContext) PublishAttributes() *PublishAttributes { return c.publishAttributes }

// ContextDataToStore returns the persistable context-level view.
func (c *CreateContext) ContextDataToStore() map[string]any {
	output := domain.DeepCopyMap(c.contextData)
	if output == nil {
		output = map[string]any{}
	}
	output[keyPublishAttributes] = c.publishAttributes.DataToStore()
	return output
}

// ContextChanges returns the diff of the context-level data against its last
// stored state.
func (c *CreateContext) ContextChanges() *domain.Changes {
	return domain.NewChanges(c.originalContextData, c.ContextDataToStore())
}

// HasChanges reports whether the context or any instance diverged from the
// stored state.
func (c *CreateContext) HasChanges() bool {
	if c.ContextChanges().Changed() {
		return true
	}
	for _, instance := range c.Instances() {
		if instance.HasChanges() {
			return true
		}
	}
	return false
}

// Reset rebuilds the whole context from the host: context data, collected
// instances, convertible content and automatic instances. All additions are
// announced through one batched notification.
func (c *CreateContext) Reset(ctx context.Context) error {
	c.emit(TopicResetStarted, "", nil)
	c.instancesByID = map[string]*CreatedInstance{}
	c.instanceOrder = nil
	c.convertorItems = map[string]*ConvertorItem{}
	c.collectionSharedData = map[string]any{}
	defer func() {
		c.collectionSharedData = nil
		c.resetCount++
		c.emit(TopicResetFinished, "", nil)
	}()

	if err := c.resetContextData(); err != nil {
		return err
	}

	var collectErr, convertorErr, autoErr error
	fullErr := c.BulkAddInstances("", func() error {
		collectErr = c.observe(ctx, OpCollect, func(context.Context) error {
			return c.collectInstances()
		})
		convertorErr = c.observe(ctx, OpConvertorFind, func(context.Context) error {
			return c.findConvertorInstances()
		})
		autoErr = c.observe(ctx, OpCreate, func(opCtx context.Context) error {
			return c.executeAutoCreators(opCtx)
		})
		return nil
	})
	if fullErr != nil {
		return fullErr
	}
	c.bindContextPublishPluginDefs()
	return errors.Join(collectErr, convertorErr, autoErr)
}

func (c *CreateContext) resetContextData() error {
	data, err := c.host.GetContextData()
	if err != nil {
		return fmt.Errorf("load context data: %w", err)
	}
	c.contextData = map[string]any{}
	var publishValues map[string]any
	for key, value := range data {
		if key == keyPublishAttributes {
			publishValues, _ = domain.AsMap(value)
			continue
		}
		c.contextData[key] = domain.DeepCopy(value)
	}
	c.publishAttributes = newPublishAttributes(c, publishValues)
	c.originalContextData = c.ContextDataToStore()
	return nil
}

func (c *CreateContext) collectInstances() error {
	var failures []OperationFailure
	for _, creator := range c.Creators() {
		failure := c.callPlugin(creator.Identifier(), creator.Label(), func() error {
			return creator.CollectInstances(c)
		})
		if failure != nil {
			failures = append(failures, *failure)
		}
	}
	if len(failures) > 0 {
		return &OperationFailedError{Op: OpCollect, Failures: failures}
	}
	return nil
}

func (c *CreateContext) findConvertorInstances() error {
	var failures []OperationFailure
	for _, identifier := range c.convertorOrder {
		convertor := c.convertors[identifier]
		failure := c.callPlugin(identifier, identifier, func() error {
			return convertor.FindInstances(c)
		})
		if failure != nil {
			failures = append(failures, *failure)
		}
	}
	if len(failures) > 0 {
		return &OperationFailedError{Op: OpConvertorFind, Failures: failures}
	}
	return nil
}

func (c *CreateContext) executeAutoCreators(context.Context) error {
	existing := map[string]struct{}{}
	for _, instance := range c.Instances() {
		existing[instance.CreatorIdentifier()] = struct{}{}
	}
	var failures []OperationFailure
	for _, creator := range c.AutoCreators() {
		if _, ok := existing[creator.Identifier()]; ok {
			continue
		}
		failure := c.callPlugin(creator.Identifier(), creator.Label(), func() error {
			_, err := creator.Create(c)
			return err
		})
		if failure != nil {
			failures = append(failures, *failure)
		}
	}
	if len(failures) > 0 {
		return &OperationFailedError{Op: OpCreate, Failures: failures}
	}
	return nil
}

func (c *CreateContext) bindContextPublishPluginDefs() {
	for _, plugin := range c.publishPlugins {
		defs := plugin.ContextAttrDefs()
		if defs != nil {
			c.publishAttributes.SetPluginAttrDefs(plugin.Name(), defs)
		}
	}
}

// Create runs a manual strategy. The product name is composed by the
// strategy from the variant and all created instances are announced through
// one batched notification.
func (c *CreateContext) Create(ctx context.Context, identifier, variant string, data, preCreateData map[string]any) ([]*CreatedInstance, error) {
	creator, ok := c.creators[identifier]
	if !ok {
		return nil, fmt.Errorf("creator %q is not registered", identifier)
	}
	manual, ok := creator.(ManualCreator)
	if !ok {
		return nil, fmt.Errorf("creator %q cannot be triggered manually", identifier)
	}

	var instances []*CreatedInstance
	err := c.observe(ctx, OpCreate, func(context.Context) error {
		return c.BulkAddInstances("", func() error {
			productName, err := manual.ProductName(c, variant)
			if err != nil {
				return c.pluginFailure(identifier, creator.Label(), err)
			}
			failure := c.callPlugin(identifier, creator.Label(), func() error {
				created, createErr := manual.Create(c, productName, data, preCreateData)
				instances = created
				return createErr
			})
			if failure != nil {
				return &OperationFailedError{Op: OpCreate, Failures: []OperationFailure{*failure}}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (c *CreateContext) pluginFailure(identifier, label string, err error) error {
	failure := failureFromError(identifier, label, err)
	return &OperationFailedError{Op: OpCreate, Failures: []OperationFailure{failure}}
}

// SaveChanges persists the context data and every changed instance. Failing
// creators do not stop the pass; their failures are aggregated into the
// returned error while other creators' instances are stored.
func (c *CreateContext) SaveChanges(ctx context.Context) error {
	return c.observe(ctx, OpSave, func(context.Context) error {
		if err := c.saveContextChanges(); err != nil {
			return err
		}
		return c.saveInstanceChanges()
	})
}

func (c *CreateContext) saveContextChanges() error {
	changes := c.ContextChanges()
	if !changes.Changed() {
		return nil
	}
	data := c.ContextDataToStore()
	if err := c.host.UpdateContextData(data, changes); err != nil {
		return fmt.Errorf("store context data: %w", err)
	}
	c.originalContextData = data
	c.publishAttributes.MarkAsStored()
	return nil
}

func (c *CreateContext) saveInstanceChanges() error {
	updatesByCreator := map[string][]UpdateData{}
	var creatorIdentifiers []string
	for _, instance := range c.Instances() {
		changes := instance.Changes()
		if !changes.Changed() {
			continue
		}
		identifier := instance.CreatorIdentifier()
		if _, ok := updatesByCreator[identifier]; !ok {
			creatorIdentifiers = append(creatorIdentifiers, identifier)
		}
		updatesByCreator[identifier] = append(updatesByCreator[identifier], UpdateData{
			Instance: instance,
			Changes:  changes,
		})
	}

	var failures []OperationFailure
	for _, identifier := range creatorIdentifiers {
		updates := updatesByCreator[identifier]
		creator, ok := c.creators[identifier]
		if !ok {
			failures = append(failures, OperationFailure{
				Identifier: identifier,
				Label:      identifier,
				Message:    fmt.Sprintf("creator %q is not registered", identifier),
			})
			continue
		}
		failure := c.callPlugin(identifier, creator.Label(), func() error {
			return creator.UpdateInstances(c, updates)
		})
		if failure != nil {
			failures = append(failures, *failure)
			continue
		}
		for _, update := range updates {
			update.Instance.MarkAsStored()
		}
	}
	if len(failures) > 0 {
		return &OperationFailedError{Op: OpSave, Failures: failures}
	}
	return nil
}

// RemoveInstances removes instances through their creators. Instances whose
// creator is unknown are unregistered directly so stale records cannot get
// stuck in the context.
func (c *CreateContext) RemoveInstances(ctx context.Context, instances []*CreatedInstance, sender string) error {
	return c.observe(ctx, OpRemove, func(context.Context) error {
		return c.BulkRemoveInstances(sender, func() error {
			byCreator := map[string][]*CreatedInstance{}
			var identifiers []string
			for _, instance := range instances {
				identifier := instance.CreatorIdentifier()
				if _, known := c.creators[identifier]; !known {
					c.DropInstance(instance)
					continue
				}
				if _, ok := byCreator[identifier]; !ok {
					identifiers = append(identifiers, identifier)
				}
				byCreator[identifier] = append(byCreator[identifier], instance)
			}

			var failures []OperationFailure
			for _, identifier := range identifiers {
				creator := c.creators[identifier]
				failure := c.callPlugin(identifier, creator.Label(), func() error {
					return creator.RemoveInstances(c, byCreator[identifier])
				})
				if failure != nil {
					failures = append(failures, *failure)
				}
			}
			if len(failures) > 0 {
				return &OperationFailedError{Op: OpRemove, Failures: failures}
			}
			return nil
		})
	})
}

// RunConvertor runs one registered convertor. Converted content appears as
// regular instances after the next Reset.
func (c *CreateContext) RunConvertor(ctx context.Context, identifier string) error {
	convertor, ok := c.convertors[identifier]
	if !ok {
		return fmt.Errorf("convertor %q is not registered", identifier)
	}
	return c.observe(ctx, OpConvertorRun, func(context.Context) error {
		failure := c.callPlugin(identifier, identifier, func() error {
			return convertor.Convert(c)
		})
		if failure != nil {
			return &OperationFailedError{Op: OpConvertorRun, Failures: []OperationFailure{*failure}}
		}
		delete(c.convertorItems, identifier)
		return nil
	})
}

// RunConvertors runs the convertors of all discovered convertor items.
func (c *CreateContext) RunConvertors(ctx context.Context) error {
	return c.observe(ctx, OpConvertorRun, func(context.Context) error {
		var failures []OperationFailure
		for _, item := range c.ConvertorItems() {
			identifier := item.Identifier()
			convertor, ok := c.convertors[identifier]
			if !ok {
				continue
			}
			failure := c.callPlugin(identifier, identifier, func() error {
				return convertor.Convert(c)
			})
			if failure != nil {
				failures = append(failures, *failure)
				continue
			}
			delete(c.convertorItems, identifier)
		}
		if len(failures) > 0 {
			return &OperationFailedError{Op: OpConvertorRun, Failures: failures}
		}
		return nil
	})
}

// InstancesContextInfo validates the folder and task of each instance
// against the host. Hosts without validation capability accept any filled-in
// value.
func (c *CreateContext) InstancesContextInfo(instances []*CreatedInstance) map[*CreatedInstance]InstanceContextInfo {
	validator, hasValidator := c.host.(ContextValidator)
	output := map[*CreatedInstance]InstanceContextInfo{}
	for _, instance := range instances {
		folder, _ := instance.data[keyFolderPath].(string)
		task, _ := instance.data[keyTask].(string)
		info := InstanceContextInfo{
			FolderIsValid: folder != "",
			TaskIsValid:   task != "",
		}
		if hasValidator {
			info.FolderIsValid = info.FolderIsValid && validator.FolderExists(folder)
			info.TaskIsValid = info.TaskIsValid && validator.TaskExists(folder, task)
		}
		output[instance] = info
	}
	return output
}

// PreCreateAttrDefsChanged announces that a creator changed its pre-create
// definitions. Called by creators.
func (c *CreateContext) PreCreateAttrDefsChanged(identifier string) {
	_ = c.bulk(bulkPreCreateAttrsChange, "", func(info *BulkInfo) error {
		info.Append(identifier)
		return nil
	})
}

// ListenToInstancesAdded registers a callback for batched instance
// additions.
func (c *CreateContext) ListenToInstancesAdded(fn func(Event)) *EventCallback {
	return c.hub.AddCallback(TopicInstancesAdded, fn)
}

// ListenToInstancesRemoved registers a callback for batched instance
// removals.
func (c *CreateContext) ListenToInstancesRemoved(fn func(Event)) *EventCallback {
	return c.hub.AddCallback(TopicInstancesRemoved, fn)
}

// ListenToValuesChanged registers a callback for batched value changes.
func (c *CreateContext) ListenToValuesChanged(fn func(Event)) *EventCallback {
	return c.hub.AddCallback(TopicValuesChanged, fn)
}

// ListenToPreCreateAttrDefsChanged registers a callback for pre-create
// definition changes.
func (c *CreateContext) ListenToPreCreateAttrDefsChanged(fn func(Event)) *EventCallback {
	return c.hub.AddCallback(TopicPreCreateAttrsChanged, fn)
}

// ListenToCreateAttrDefsChanged registers a callback for creator definition
// changes.
func (c *CreateContext) ListenToCreateAttrDefsChanged(fn func(Event)) *EventCallback {
	return c.hub.AddCallback(TopicCreateAttrsChanged, fn)
}

// ListenToPublishAttrDefsChanged registers a callback for publish definition
// changes.
func (c *CreateContext) ListenToPublishAttrDefsChanged(fn func(Event)) *EventCallback {
	return c.hub.AddCallback(TopicPublishAttrsChanged, fn)
}

func (c *CreateContext) emit(topic, sender string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["create_context"] = c
	c.hub.Emit(Event{Topic: topic, Sender: sender, Data: data})
}

// instanceEventsReady gates change notifications: an instance emits only
// once it is registered and its addition has been announced.
func (c *CreateContext) instanceEventsReady(instance *CreatedInstance) bool {
	if _, ok := c.instancesByID[instance.ID()]; !ok {
		return false
	}
	for _, item := range c.bulkInfo[bulkAdd].data {
		if item == any(instance) {
			return false
		}
	}
	return true
}

func (c *CreateContext) instanceValuesChanged(instance *CreatedInstance, changes map[string]any) {
	if !c.instanceEventsReady(instance) {
		return
	}
	_ = c.bulk(bulkChange, "", func(info *BulkInfo) error {
		info.Append(InstanceChange{Instance: instance, Changes: changes})
		return nil
	})
}

func (c *CreateContext) contextValuesChanged(changes map[string]any) {
	_ = c.bulk(bulkChange, "", func(info *BulkInfo) error {
		info.Append(InstanceChange{Changes: changes})
		return nil
	})
}

// publishAttributesValueChanged implements publishAttributesOwner for the
// context-level publish attributes.
func (c *CreateContext) publishAttributesValueChanged(pluginName string, changes map[string]any) {
	c.contextValuesChanged(map[string]any{
		keyPublishAttributes: map[string]any{pluginName: changes},
	})
}

// instanceCreateAttrDefsChanged queues a creator definition change
// announcement.
func (c *CreateContext) instanceCreateAttrDefsChanged(instance *CreatedInstance) {
	if !c.instanceEventsReady(instance) {
		return
	}
	_ = c.bulk(bulkCreateAttrsChange, "", func(info *BulkInfo) error {
		info.Append(instance)
		return nil
	})
}

// instancePublishAttrDefsChanged queues a publish definition change
// announcement.
func (c *CreateContext) instancePublishAttrDefsChanged(instance *CreatedInstance, _ string) {
	if !c.instanceEventsReady(instance) {
		return
	}
	_ = c.bulk(bulkPublishAttrsChange, "", func(info *BulkInfo) error {
		info.Append(instance)
		return nil
	})
}

// callPlugin runs one plugin callable and converts its failure modes into a
// failure record. Panics are recovered with their stack, deliberate
// CreatorError failures carry only their message.
func (c *CreateContext) callPlugin(identifier, label string, fn func() error) (failure *OperationFailure) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("plugin panicked", "identifier", identifier, "panic", fmt.Sprint(r))
			failure = &OperationFailure{
				Identifier: identifier,
				Label:      label,
				Message:    fmt.Sprint(r),
				Trace:      string(debug.Stack()),
			}
		}
	}()
	if err := fn(); err != nil {
		recorded := failureFromError(identifier, label, err)
		failure = &recorded
	}
	return failure
}

func failureFromError(identifier, label string, err error) OperationFailure {
	failure := OperationFailure{Identifier: identifier, Label: label, Message: err.Error()}
	var creatorErr *CreatorError
	if !errors.As(err, &creatorErr) {
		failure.Trace = string(debug.Stack())
	}
	return failure
}
