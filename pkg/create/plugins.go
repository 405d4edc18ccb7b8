package create

import (
	"github.com/google/uuid"

	"publishcore/pkg/attrdef"
	"publishcore/pkg/domain"
)

// Creator is the base creation strategy. A creator owns the instances of its
// identifier: it discovers them in the host during collection, writes their
// changes back and removes them on request.
type Creator interface {
	// Identifier uniquely names the strategy. Instances carry it so
	// ownership survives persistence.
	Identifier() string
	// Label is the display name of the strategy.
	Label() string
	// Order controls collection ordering, lower runs first.
	Order() int

	// CollectInstances discovers the creator's existing instances in the
	// host and registers them on the context.
	CollectInstances(cc *CreateContext) error
	// UpdateInstances persists pending changes of the listed instances.
	UpdateInstances(cc *CreateContext, updates []UpdateData) error
	// RemoveInstances removes the listed instances from the host and
	// unregisters them from the context.
	RemoveInstances(cc *CreateContext, instances []*CreatedInstance) error

	// InstanceAttrDefs returns the attribute definitions of one instance.
	InstanceAttrDefs(instance *CreatedInstance) []attrdef.Def
}

// ManualCreator is a strategy triggered explicitly by a user.
type ManualCreator interface {
	Creator

	// ProductName composes the product name from the current context and
	// the chosen variant.
	ProductName(cc *CreateContext, variant string) (string, error)
	// PreCreateAttrDefs returns the definitions of options gathered
	// before creation happens.
	PreCreateAttrDefs() []attrdef.Def
	// DefaultVariants returns variant suggestions for interactive tools.
	DefaultVariants() []string
	// Create makes new instances from the given product name, instance
	// data and pre-create option values.
	Create(cc *CreateContext, productName string, data, preCreateData map[string]any) ([]*CreatedInstance, error)
}

// AutoCreator is a strategy that creates its instance automatically during a
// context reset when it does not exist yet.
type AutoCreator interface {
	Creator

	// Create makes the creator's automatic instance.
	Create(cc *CreateContext) (*CreatedInstance, error)
}

// HiddenCreator is a manual strategy that is not offered to users directly
// and is only triggered by other creators.
type HiddenCreator interface {
	ManualCreator

	hiddenCreator()
}

// HiddenCreatorMixin marks a creator as hidden when embedded.
type HiddenCreatorMixin struct{}

func (HiddenCreatorMixin) hiddenCreator() {}

// UpdateData pairs an instance with its pending diff for UpdateInstances.
type UpdateData struct {
	Instance *CreatedInstance
	Changes  *domain.Changes
}

// Convertor migrates instances written by older tool versions into a shape a
// current creator can own.
type Convertor interface {
	// Identifier uniquely names the convertor.
	Identifier() string
	// FindInstances looks for convertible content and registers a
	// ConvertorItem on the context when some exists.
	FindInstances(cc *CreateContext) error
	// Convert rewrites the convertible content in the host. Converted
	// instances appear after the next reset.
	Convert(cc *CreateContext) error
}

// ConvertorItem is the discovery report of one convertor.
type ConvertorItem struct {
	id         string
	identifier string
	label      string
}

// NewConvertorItem builds a report for the convertor identifier.
func NewConvertorItem(identifier, label string) *ConvertorItem {
	return &ConvertorItem{id: uuid.NewString(), identifier: identifier, label: label}
}

func (c *ConvertorItem) ID() string         { return c.id }
func (c *ConvertorItem) Identifier() string { return c.identifier }
func (c *ConvertorItem) Label() string      { return c.label }

// PublishPlugin declares publish-time attribute definitions. Registered
// plugins get their definitions attached to matching instances and to the
// context itself.
type PublishPlugin interface {
	// Name uniquely names the plugin. Attribute data is stored under it.
	Name() string
	// InstanceAttrDefs returns definitions for the instance, nil when the
	// plugin does not apply to it.
	InstanceAttrDefs(instance *CreatedInstance) []attrdef.Def
	// ContextAttrDefs returns context-level definitions, nil when the
	// plugin has none.
	ContextAttrDefs() []attrdef.Def
}
