// Package legacymeta provides the reference convertor: it migrates instance
// records written before creator identifiers existed, assigning them to the
// render creator based on their legacy family field.
package legacymeta

import (
	"fmt"

	"publishcore/internal/hoststore"
	"publishcore/pkg/create"
)

const identifier = "io.publishcore.convert.legacymeta"

// renderIdentifier matches the render plugin's creator identifier.
const renderIdentifier = "io.publishcore.create.render"

// Convertor rewrites legacy render records into the current schema.
type Convertor struct {
	adapter *hoststore.Adapter
}

// New builds the convertor on top of the host store adapter.
func New(adapter *hoststore.Adapter) *Convertor {
	return &Convertor{adapter: adapter}
}

func (c *Convertor) Identifier() string { return identifier }

// FindInstances reports convertible content when legacy records exist.
func (c *Convertor) FindInstances(cc *create.CreateContext) error {
	records, err := c.legacyRecords()
	if err != nil {
		return err
	}
	if len(records) > 0 {
		cc.AddConvertorItem(create.NewConvertorItem(identifier, "Legacy render instances"))
	}
	return nil
}

// Convert rewrites every legacy record in place. Converted instances are
// collected by the render creator on the next reset.
func (c *Convertor) Convert(*create.CreateContext) error {
	records, err := c.legacyRecords()
	if err != nil {
		return err
	}
	for _, record := range records {
		id, _ := record["id"].(string)
		if id == "" {
			continue
		}
		record["creator_identifier"] = renderIdentifier
		if _, ok := record["productType"]; !ok {
			record["productType"] = record["family"]
		}
		if _, ok := record["productName"]; !ok {
			record["productName"] = record["subset"]
		}
		delete(record, "family")
		delete(record, "subset")
		if err := c.adapter.SaveInstanceRecord(id, record); err != nil {
			return fmt.Errorf("rewrite legacy instance %s: %w", id, err)
		}
	}
	return nil
}

// legacyRecords returns stored payloads that carry a family field but no
// creator identifier.
func (c *Convertor) legacyRecords() ([]map[string]any, error) {
	records, err := c.adapter.ListInstanceRecords("")
	if err != nil {
		return nil, fmt.Errorf("scan legacy instances: %w", err)
	}
	var output []map[string]any
	for _, record := range records {
		if _, hasFamily := record["family"]; hasFamily {
			output = append(output, record)
		}
	}
	return output, nil
}
