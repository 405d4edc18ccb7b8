package create

import (
	"context"
	"reflect"
	"testing"
)

func listenAll(cc *CreateContext) *[]string {
	var topics []string
	for _, topic := range []string{
		TopicInstancesAdded,
		TopicInstancesRemoved,
		TopicValuesChanged,
		TopicPreCreateAttrsChanged,
		TopicCreateAttrsChanged,
		TopicPublishAttrsChanged,
	} {
		topic := topic
		cc.Hub().AddCallback(topic, func(Event) { topics = append(topics, topic) })
	}
	return &topics
}

func TestBulkReentrantScopesCollapse(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	var batches [][]*CreatedInstance
	cc.ListenToInstancesAdded(func(event Event) {
		batches = append(batches, event.Data["instances"].([]*CreatedInstance))
	})

	err := cc.BulkAddInstances("test", func() error {
		for _, variant := range []string{"Main", "Beauty", "Shadow"} {
			if _, err := cc.Create(context.Background(), "render", variant, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected one collapsed notification, got %d", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Fatalf("expected three instances in the batch, got %d", len(batches[0]))
	}
}

func TestBulkFlushOrderFollowsScopeOpening(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)
	if err := cc.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	topics := listenAll(cc)

	// The change scope opens first and stays open while the nested add
	// scope closes, so the add payload must wait for the change flush.
	err := cc.BulkValueChanges("test", func() error {
		cc.SetContextValue("comment", "queued first")
		return cc.BulkAddInstances("test", func() error {
			_, err := cc.Create(context.Background(), "render", "Main", nil, nil)
			return err
		})
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	want := []string{TopicValuesChanged, TopicInstancesAdded}
	if !reflect.DeepEqual(*topics, want) {
		t.Fatalf("expected flush order %v, got %v", want, *topics)
	}
}

func TestBulkValueChangesMergePerInstance(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)
	instances, err := cc.Create(context.Background(), "render", "Main", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	instance := instances[0]
	instance.SetPublishPluginAttrDefs("ExtractReview", nil)

	var events []Event
	cc.ListenToValuesChanged(func(event Event) { events = append(events, event) })

	err = cc.BulkValueChanges("ui", func() error {
		if err := instance.SetValue("comment", "first"); err != nil {
			return err
		}
		if err := instance.SetValue("comment", "second"); err != nil {
			return err
		}
		instance.CreatorAttributes().Set("review", true)
		instance.CreatorAttributes().Set("frames", 10)
		return instance.SetValue(keyActive, false)
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected one merged event, got %d", len(events))
	}
	if events[0].Sender != "ui" {
		t.Fatalf("expected sender ui, got %q", events[0].Sender)
	}
	changes := events[0].Data["changes"].([]InstanceChange)
	if len(changes) != 1 || changes[0].Instance != instance {
		t.Fatalf("expected one instance entry, got %v", changes)
	}
	merged := changes[0].Changes
	if merged["comment"] != "second" {
		t.Fatalf("expected later value to win, got %v", merged["comment"])
	}
	if merged[keyActive] != false {
		t.Fatalf("expected active=false, got %v", merged[keyActive])
	}
	creatorChanges, ok := merged[keyCreatorAttributes].(map[string]any)
	if !ok {
		t.Fatalf("expected nested creator attribute changes, got %v", merged)
	}
	if creatorChanges["review"] != true || creatorChanges["frames"] != 10 {
		t.Fatalf("expected merged creator attributes, got %v", creatorChanges)
	}
}

func TestValueChangesGatedUntilInstanceAnnounced(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	var valueEvents int
	cc.ListenToValuesChanged(func(Event) { valueEvents++ })

	err := cc.BulkAddInstances("", func() error {
		instances, err := cc.Create(context.Background(), "render", "Main", nil, nil)
		if err != nil {
			return err
		}
		// Still pending announcement, so this change must stay silent.
		return instances[0].SetValue("comment", "early")
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if valueEvents != 0 {
		t.Fatalf("expected no values.changed for unannounced instance, got %d", valueEvents)
	}
}

func TestBulkSenderLastNonEmptyWins(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)

	var senders []string
	cc.ListenToInstancesAdded(func(event Event) { senders = append(senders, event.Sender) })

	err := cc.BulkAddInstances("outer", func() error {
		return cc.BulkAddInstances("", func() error {
			return cc.BulkAddInstances("inner", func() error {
				_, err := cc.Create(context.Background(), "render", "Main", nil, nil)
				return err
			})
		})
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(senders) != 1 || senders[0] != "inner" {
		t.Fatalf("expected sender inner, got %v", senders)
	}
}

func TestBulkEmptyScopeEmitsNothing(t *testing.T) {
	host := newMemoryHost()
	cc := newTestContext(t, host)
	topics := listenAll(cc)

	if err := cc.BulkAddInstances("test", func() error { return nil }); err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(*topics) != 0 {
		t.Fatalf("expected no events for empty batch, got %v", *topics)
	}
}

func TestPreCreateAttrDefsChangedDeduplicates(t *testing.T) {
	host := newMemoryHost()
	cc := newTestContext(t, host)

	var identifierLists [][]string
	cc.ListenToPreCreateAttrDefsChanged(func(event Event) {
		identifierLists = append(identifierLists, event.Data["identifiers"].([]string))
	})

	err := cc.BulkPreCreateAttrDefsChange("", func() error {
		cc.PreCreateAttrDefsChanged("render")
		cc.PreCreateAttrDefsChanged("render")
		cc.PreCreateAttrDefsChanged("look")
		return nil
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	want := [][]string{{"render", "look"}}
	if !reflect.DeepEqual(identifierLists, want) {
		t.Fatalf("expected %v, got %v", want, identifierLists)
	}
}

func TestAttrDefChangeBatches(t *testing.T) {
	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := newTestContext(t, host, creator)
	instances, err := cc.Create(context.Background(), "render", "Main", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	topics := listenAll(cc)

	instances[0].SetCreateAttrDefs(nil)
	instances[0].SetPublishPluginAttrDefs("ExtractReview", nil)

	want := []string{TopicCreateAttrsChanged, TopicPublishAttrsChanged}
	if !reflect.DeepEqual(*topics, want) {
		t.Fatalf("expected %v, got %v", want, *topics)
	}
}
