package create

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"publishcore/pkg/attrdef"
)

func newTestContext(t *testing.T, host *memoryHost, creators ...Creator) *CreateContext {
	t.Helper()
	cc := NewCreateContext(host)
	for _, creator := range creators {
		if err := cc.RegisterCreator(creator); err != nil {
			t.Fatalf("register creator: %v", err)
		}
	}
	return cc
}

func TestCreateRegistersAndAnnouncesInstance(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	var added []*CreatedInstance
	cc.ListenToInstancesAdded(func(event Event) {
		added = append(added, event.Data["instances"].([]*CreatedInstance)...)
	})

	instances, err := cc.Create(context.Background(), "render", "Main", map[string]any{
		keyFolderPath: "/assets/hero",
		keyTask:       "modeling",
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("expected one instance, got %d", len(instances))
	}
	instance := instances[0]
	if instance.ProductName() != "renderMain" {
		t.Fatalf("unexpected product name %q", instance.ProductName())
	}
	if instance.ID() == "" {
		t.Fatal("expected generated id")
	}
	if len(added) != 1 || added[0] != instance {
		t.Fatalf("expected one announced instance, got %v", added)
	}
	if _, ok := cc.InstanceByID(instance.ID()); !ok {
		t.Fatal("instance missing from context index")
	}
}

func TestCreateFailureIsAggregated(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	_, err := cc.Create(context.Background(), "render", "", nil, nil)
	opErr, ok := asOperationFailed(err)
	if !ok {
		t.Fatalf("expected OperationFailedError, got %v", err)
	}
	if opErr.Op != OpCreate || len(opErr.Failures) != 1 {
		t.Fatalf("unexpected failure shape: %+v", opErr)
	}
	if opErr.Failures[0].Trace != "" {
		t.Fatal("deliberate creator errors must not carry a trace")
	}
}

func TestResetCollectsStoredInstances(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	created, err := cc.Create(context.Background(), "render", "Main", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created[0].ID()

	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	restored, ok := cc.InstanceByID(id)
	if !ok {
		t.Fatal("expected instance to survive a reset")
	}
	if restored == created[0] {
		t.Fatal("reset must rebuild instances from stored data")
	}
	if restored.ProductName() != "renderMain" {
		t.Fatalf("unexpected product name %q", restored.ProductName())
	}
}

func TestResetAggregatesCollectFailuresWithPartialSuccess(t *testing.T) {
	host := newMemoryHost()
	good := &testCreator{identifier: "render", host: host}
	bad := &testCreator{identifier: "broken", host: host, collectPanic: "host exploded"}
	cc := newTestContext(t, host, good, bad)

	if _, err := cc.Create(context.Background(), "render", "Main", nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := cc.Reset(context.Background())
	opErr, ok := asOperationFailed(err)
	if !ok {
		t.Fatalf("expected OperationFailedError, got %v", err)
	}
	if opErr.Op != OpCollect {
		t.Fatalf("unexpected op %q", opErr.Op)
	}
	failures := opErr.FailuresFor("broken")
	if len(failures) != 1 {
		t.Fatalf("expected one failure for broken creator, got %d", len(failures))
	}
	if failures[0].Trace == "" {
		t.Fatal("panics must carry a stack trace")
	}
	// The healthy creator still collected its instance.
	if len(cc.Instances()) != 1 {
		t.Fatalf("expected one collected instance, got %d", len(cc.Instances()))
	}
}

func TestAutoCreatorRunsOnlyWhenMissing(t *testing.T) {
	host := newMemoryHost()
	auto := &testAutoCreator{testCreator{identifier: "workfile", host: host}}
	cc := newTestContext(t, host, auto)

	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(cc.Instances()) != 1 {
		t.Fatalf("expected auto-created instance, got %d", len(cc.Instances()))
	}
	id := cc.Instances()[0].ID()

	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("second reset: %v", err)
	}
	if len(cc.Instances()) != 1 {
		t.Fatalf("expected a single instance after second reset, got %d", len(cc.Instances()))
	}
	if cc.Instances()[0].ID() != id {
		t.Fatal("existing auto instance must be collected, not recreated")
	}
}

func TestSaveChangesAggregatesFailuresWithPartialSuccess(t *testing.T) {
	host := newMemoryHost()
	good := &testCreator{identifier: "render", host: host}
	bad := &testCreator{identifier: "look", host: host, updateErr: NewCreatorError("scene is locked")}
	cc := newTestContext(t, host, good, bad)

	goodInstances, err := cc.Create(context.Background(), "render", "Main", nil, nil)
	if err != nil {
		t.Fatalf("create render: %v", err)
	}
	badInstances, err := cc.Create(context.Background(), "look", "Main", nil, nil)
	if err != nil {
		t.Fatalf("create look: %v", err)
	}
	if err := goodInstances[0].SetValue("comment", "approved"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if err := badInstances[0].SetValue("comment", "rejected"); err != nil {
		t.Fatalf("set value: %v", err)
	}

	err = cc.SaveChanges(context.Background())
	opErr, ok := asOperationFailed(err)
	if !ok {
		t.Fatalf("expected OperationFailedError, got %v", err)
	}
	if opErr.Op != OpSave {
		t.Fatalf("unexpected op %q", opErr.Op)
	}
	if len(opErr.FailuresFor("look")) != 1 {
		t.Fatalf("expected failure for look creator, got %+v", opErr.Failures)
	}
	if goodInstances[0].HasChanges() {
		t.Fatal("successfully stored instance must be marked as stored")
	}
	if !badInstances[0].HasChanges() {
		t.Fatal("failed instance must keep its pending changes")
	}
}

func TestSaveChangesPersistsContextData(t *testing.T) {
	host := newMemoryHost()
	cc := newTestContext(t, host)
	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}

	cc.SetContextValue("comment", "dailies at 10")
	if !cc.HasChanges() {
		t.Fatal("expected pending context changes")
	}
	if err := cc.SaveChanges(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if cc.HasChanges() {
		t.Fatal("expected no pending changes after save")
	}
	if host.contextData["comment"] != "dailies at 10" {
		t.Fatalf("context data not stored: %v", host.contextData)
	}
	// Unchanged context must not hit the host again.
	calls := host.updateCalls
	if err := cc.SaveChanges(context.Background()); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if host.updateCalls != calls {
		t.Fatal("unchanged context data must not be rewritten")
	}
}

func TestRemoveInstancesThroughCreator(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	instances, err := cc.Create(context.Background(), "render", "Main", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var removed []*CreatedInstance
	cc.ListenToInstancesRemoved(func(event Event) {
		removed = append(removed, event.Data["instances"].([]*CreatedInstance)...)
	})

	if err := cc.RemoveInstances(context.Background(), instances, "test"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cc.Instances()) != 0 {
		t.Fatal("expected empty context")
	}
	if len(host.storedIDs()) != 0 {
		t.Fatal("expected host payload removed")
	}
	if len(removed) != 1 || removed[0] != instances[0] {
		t.Fatalf("expected one removal notification, got %v", removed)
	}
}

func TestRemoveInstancesWithUnknownCreator(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	orphan := cc.NewInstanceFromExisting(nil, map[string]any{
		keyProductType: "render",
		keyProductName: "orphan",
	})
	if err := cc.AddInstance(orphan); err != nil {
		t.Fatalf("add orphan: %v", err)
	}
	if err := cc.RemoveInstances(context.Background(), []*CreatedInstance{orphan}, ""); err != nil {
		t.Fatalf("remove orphan: %v", err)
	}
	if _, ok := cc.InstanceByID(orphan.ID()); ok {
		t.Fatal("orphan instance must be unregistered")
	}
}

func TestCollectionSharedDataLifetime(t *testing.T) {
	host := newMemoryHost()
	sharing := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, sharing)

	if _, err := cc.CollectionSharedData("cache"); err == nil {
		t.Fatal("shared data must be unavailable before collection")
	}
	var sharedErr *UnavailableSharedDataError
	_, err := cc.CollectionSharedData("cache")
	if !errors.As(err, &sharedErr) {
		t.Fatalf("expected UnavailableSharedDataError, got %v", err)
	}

	var duringReset error
	var seen any
	probe := &probeCreator{identifier: "probe", onCollect: func(cc *CreateContext) error {
		duringReset = cc.SetCollectionSharedData("cache", 42)
		seen, _ = cc.CollectionSharedData("cache")
		return nil
	}}
	if err := cc.RegisterCreator(probe); err != nil {
		t.Fatalf("register probe: %v", err)
	}
	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if duringReset != nil {
		t.Fatalf("shared data must work during collection: %v", duringReset)
	}
	if seen != 42 {
		t.Fatalf("expected shared value 42, got %v", seen)
	}
	if _, err := cc.CollectionSharedData("cache"); err == nil {
		t.Fatal("shared data must be dropped after collection")
	}
}

func TestConvertorLifecycle(t *testing.T) {
	host := newMemoryHost()
	cc := newTestContext(t, host)
	convertor := &testConvertor{identifier: "legacy_render", host: host}
	if err := cc.RegisterConvertor(convertor); err != nil {
		t.Fatalf("register convertor: %v", err)
	}
	host.contextData["legacy_marker"] = true

	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	items := cc.ConvertorItems()
	if len(items) != 1 || items[0].Identifier() != "legacy_render" {
		t.Fatalf("expected discovered convertor item, got %v", items)
	}

	if err := cc.RunConvertors(context.Background()); err != nil {
		t.Fatalf("run convertors: %v", err)
	}
	if !convertor.converted {
		t.Fatal("expected convertor to run")
	}
	if len(cc.ConvertorItems()) != 0 {
		t.Fatal("expected convertor item to be consumed")
	}
}

func TestPublishPluginDefsBoundOnAdd(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)
	plugin := &testPublishPlugin{
		name:         "ExtractReview",
		instanceDefs: []attrdef.Def{attrdef.NewBoolDef("burnin", true)},
		contextDefs:  []attrdef.Def{attrdef.NewTextDef("comment", "")},
	}
	if err := cc.RegisterPublishPlugin(plugin); err != nil {
		t.Fatalf("register plugin: %v", err)
	}

	instances, err := cc.Create(context.Background(), "render", "Main", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bound := instances[0].PublishAttributes().Plugin("ExtractReview")
	if bound == nil {
		t.Fatal("expected plugin defs bound before announcement")
	}
	if got := bound.Value("burnin"); got != true {
		t.Fatalf("expected default burnin, got %v", got)
	}

	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if cc.PublishAttributes().Plugin("ExtractReview") == nil {
		t.Fatal("expected context-level plugin defs after reset")
	}
}

func TestInstancesContextInfoUsesHostValidation(t *testing.T) {
	host := newMemoryHost()
	host.folders = map[string]struct{}{"/assets/hero": {}}
	host.tasksByFolder = map[string][]string{"/assets/hero": {"modeling"}}
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	valid, err := cc.Create(context.Background(), "render", "Main", map[string]any{
		keyFolderPath: "/assets/hero",
		keyTask:       "modeling",
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stale, err := cc.Create(context.Background(), "render", "Old", map[string]any{
		keyFolderPath: "/assets/gone",
		keyTask:       "modeling",
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	info := cc.InstancesContextInfo(append(valid, stale...))
	if !info[valid[0]].Valid() {
		t.Fatalf("expected valid context info, got %+v", info[valid[0]])
	}
	if info[stale[0]].FolderIsValid {
		t.Fatal("expected stale folder to be flagged")
	}
}

func TestContextPublishAttributesReportChanges(t *testing.T) {
	host := newMemoryHost()
	cc := newTestContext(t, host)
	cc.PublishAttributes().SetPluginAttrDefs("CollectComment", []attrdef.Def{
		attrdef.NewTextDef("comment", ""),
	})

	var events []Event
	cc.ListenToValuesChanged(func(event Event) { events = append(events, event) })

	cc.PublishAttributes().Plugin("CollectComment").Set("comment", "hello")
	if len(events) != 1 {
		t.Fatalf("expected one values.changed event, got %d", len(events))
	}
	changes := events[0].Data["changes"].([]InstanceChange)
	if len(changes) != 1 || changes[0].Instance != nil {
		t.Fatalf("expected one context-level change, got %v", changes)
	}
	want := map[string]any{
		keyPublishAttributes: map[string]any{
			"CollectComment": map[string]any{"comment": "hello"},
		},
	}
	if !reflect.DeepEqual(changes[0].Changes, want) {
		t.Fatalf("expected %v, got %v", want, changes[0].Changes)
	}
}

// probeCreator runs a closure during collection.
type probeCreator struct {
	identifier string
	onCollect  func(cc *CreateContext) error
}

func (c *probeCreator) Identifier() string { return c.identifier }
func (c *probeCreator) Label() string      { return c.identifier }
func (c *probeCreator) Order() int         { return 100 }

func (c *probeCreator) CollectInstances(cc *CreateContext) error { return c.onCollect(cc) }

func (c *probeCreator) UpdateInstances(*CreateContext, []UpdateData) error { return nil }

func (c *probeCreator) RemoveInstances(cc *CreateContext, instances []*CreatedInstance) error {
	for _, instance := range instances {
		cc.DropInstance(instance)
	}
	return nil
}

func (c *probeCreator) InstanceAttrDefs(*CreatedInstance) []attrdef.Def { return nil }

// testConvertor reports convertible content while a marker key exists in the
// host context data.
type testConvertor struct {
	identifier string
	host       *memoryHost
	converted  bool
}

func (c *testConvertor) Identifier() string { return c.identifier }

func (c *testConvertor) FindInstances(cc *CreateContext) error {
	if marker, _ := c.host.contextData["legacy_marker"].(bool); marker {
		cc.AddConvertorItem(NewConvertorItem(c.identifier, "Legacy render layers"))
	}
	return nil
}

func (c *testConvertor) Convert(*CreateContext) error {
	c.converted = true
	delete(c.host.contextData, "legacy_marker")
	return nil
}
