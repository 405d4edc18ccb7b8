package domain

import "sort"

// absentValue marks a comparison side that has no value at all. It is
// distinct from an explicit nil so a key that held nil can be told apart
// from a key that did not exist.
type absentValue struct{}

var absent any = absentValue{}

// Changes tracks the difference between an old and a new value.
//
// Both values are deep copied on construction, so callers do not need to
// snapshot them first. When either side is a string-keyed mapping the record
// can be indexed by key, which yields another Changes record for that key's
// sub-values. Child records are built lazily on first key access and cached,
// so repeated queries of ChangedKeys or AvailableKeys stay cheap.
type Changes struct {
	changed bool

	oldValue any
	newValue any

	oldIsMap bool
	newIsMap bool

	prepared    bool
	children    map[string]*Changes
	changedKeys []string
}

// NewChanges builds a change record from an old and a new value.
func NewChanges(oldValue, newValue any) *Changes {
	changed := !DeepEqual(oldValue, newValue)
	// Resolve the absent sentinel only after the equality comparison so an
	// absent side never compares equal to an explicit nil.
	if _, ok := oldValue.(absentValue); ok {
		oldValue = nil
	}
	if _, ok := newValue.(absentValue); ok {
		newValue = nil
	}
	_, oldIsMap := AsMap(oldValue)
	_, newIsMap := AsMap(newValue)
	return &Changes{
		changed:  changed,
		oldValue: DeepCopy(oldValue),
		newValue: DeepCopy(newValue),
		oldIsMap: oldIsMap,
		newIsMap: newIsMap,
	}
}

// Changed reports whether old and new value differ at this level or below.
func (c *Changes) Changed() bool { return c.changed }

// IsMap reports whether the record can be indexed by key.
func (c *Changes) IsMap() bool { return c.oldIsMap || c.newIsMap }

// OldValue returns a deep copy of the old value.
func (c *Changes) OldValue() any { return DeepCopy(c.oldValue) }

// NewValue returns a deep copy of the new value.
func (c *Changes) NewValue() any { return DeepCopy(c.newValue) }

// OldKeys returns the sorted keys of the old value. The result is empty when
// the old value is not a mapping.
func (c *Changes) OldKeys() []string {
	if !c.oldIsMap {
		return nil
	}
	m, _ := AsMap(c.oldValue)
	return sortedKeys(m)
}

// NewKeys returns the sorted keys of the new value. The result is empty when
// the new value is not a mapping.
func (c *Changes) NewKeys() []string {
	if !c.newIsMap {
		return nil
	}
	m, _ := AsMap(c.newValue)
	return sortedKeys(m)
}

// AvailableKeys returns the sorted union of old and new keys.
func (c *Changes) AvailableKeys() []string {
	seen := map[string]struct{}{}
	for _, key := range c.OldKeys() {
		seen[key] = struct{}{}
	}
	for _, key := range c.NewKeys() {
		seen[key] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RemovedKeys returns keys present in the old value but not in the new one.
func (c *Changes) RemovedKeys() []string {
	newKeys := map[string]struct{}{}
	for _, key := range c.NewKeys() {
		newKeys[key] = struct{}{}
	}
	var removed []string
	for _, key := range c.OldKeys() {
		if _, ok := newKeys[key]; !ok {
			removed = append(removed, key)
		}
	}
	return removed
}

// ChangedKeys returns sorted keys whose sub-values changed between old and
// new value, including keys present on only one side.
func (c *Changes) ChangedKeys() []string {
	c.prepare()
	keys := make([]string, len(c.changedKeys))
	copy(keys, c.changedKeys)
	return keys
}

// HasKey reports whether the key is available on either side.
func (c *Changes) HasKey(key string) bool {
	c.prepare()
	_, ok := c.children[key]
	return ok
}

// Child returns the change record for a key's sub-values.
func (c *Changes) Child(key string) (*Changes, bool) {
	c.prepare()
	child, ok := c.children[key]
	return child, ok
}

// ValuePair carries the raw old and new value of one changed key.
type ValuePair struct {
	Old any
	New any
}

// ChangedValues maps every changed key to its old and new raw value. The
// result is empty when the record is not indexable.
func (c *Changes) ChangedValues() map[string]ValuePair {
	output := map[string]ValuePair{}
	if !c.IsMap() {
		return output
	}
	oldMap, _ := AsMap(c.oldValue)
	newMap, _ := AsMap(c.newValue)
	for _, key := range c.ChangedKeys() {
		pair := ValuePair{}
		if c.oldIsMap {
			pair.Old = DeepCopy(oldMap[key])
		}
		if c.newIsMap {
			pair.New = DeepCopy(newMap[key])
		}
		output[key] = pair
	}
	return output
}

func (c *Changes) prepare() {
	if c.prepared {
		return
	}
	c.prepared = true
	c.children = map[string]*Changes{}
	if !c.IsMap() {
		return
	}

	oldMap, _ := AsMap(c.oldValue)
	newMap, _ := AsMap(c.newValue)
	var changedKeys []string
	for _, key := range c.AvailableKeys() {
		oldSub := absent
		newSub := absent
		inOld := false
		inNew := false
		if c.oldIsMap {
			if value, ok := oldMap[key]; ok {
				oldSub = value
				inOld = true
			}
		}
		if c.newIsMap {
			if value, ok := newMap[key]; ok {
				newSub = value
				inNew = true
			}
		}
		child := NewChanges(oldSub, newSub)
		c.children[key] = child
		if child.Changed() || !inOld || !inNew {
			changedKeys = append(changedKeys, key)
		}
	}
	sort.Strings(changedKeys)
	c.changedKeys = changedKeys
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
