package tally

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

// LoadRequest selects which Tally master collection feeds a field's
// vocabulary. DataType "auto" infers the collection from the field name.
type LoadRequest struct {
	DataType    string `json:"data_type"`
	GroupFilter string `json:"group_filter"`
}

// LoadFieldOptions replaces a SELECT field's vocabulary with entities
// pulled from Tally. Returns how many options were written.
func LoadFieldOptions(ctx context.Context, connector *Connector, fieldId int, request LoadRequest) (int, error) {
	field, err := models.GetTemplateField(ctx, fieldId)
	if err != nil {
		return 0, err
	}
	if field.FieldType != models.FieldTypeSelect {
		return 0, utils.NewValidationError("field %d is not a SELECT field", fieldId)
	}

	kind, groupFilter, err := resolveCollection(request, field.FieldName)
	if err != nil {
		return 0, err
	}

	entities, err := connector.ListEntities(ctx, kind, groupFilter)
	if err != nil {
		return 0, err
	}

	options := fieldOptionsFromEntities(fieldId, entities)

	if err := models.ReplaceFieldOptions(ctx, fieldId, options); err != nil {
		return 0, err
	}

	logger := config.GetLogger()
	logger.WithField("fieldId", fieldId).WithField("kind", kind).Infof("loaded %d field options from tally", len(options))
	return len(options), nil
}

// LoadSubFieldOptions is the table-column counterpart of LoadFieldOptions.
func LoadSubFieldOptions(ctx context.Context, connector *Connector, subFieldId int, request LoadRequest) (int, error) {
	subField, err := models.GetSubTemplateField(ctx, subFieldId)
	if err != nil {
		return 0, err
	}
	if subField.DataType != models.DataTypeSelect {
		return 0, utils.NewValidationError("sub field %d is not a SELECT column", subFieldId)
	}

	kind, groupFilter, err := resolveCollection(request, subField.FieldName)
	if err != nil {
		return 0, err
	}

	entities, err := connector.ListEntities(ctx, kind, groupFilter)
	if err != nil {
		return 0, err
	}

	options := subFieldOptionsFromEntities(subFieldId, entities)

	if err := models.ReplaceSubFieldOptions(ctx, subFieldId, options); err != nil {
		return 0, err
	}
	return len(options), nil
}

// fieldOptionsFromEntities turns Tally masters into a field vocabulary.
// Inactive masters are skipped, and the label users match against is the
// alias when one is set.
func fieldOptionsFromEntities(fieldId int, entities []Entity) []*models.FieldOption {
	options := make([]*models.FieldOption, 0, len(entities))
	for _, entity := range entities {
		if !entity.IsActive {
			continue
		}
		options = append(options, &models.FieldOption{
			FieldId:     fieldId,
			OptionValue: entity.Name,
			OptionLabel: entity.Label(),
		})
	}
	return options
}

func subFieldOptionsFromEntities(subFieldId int, entities []Entity) []*models.SubTemplateFieldOption {
	options := make([]*models.SubTemplateFieldOption, 0, len(entities))
	for _, entity := range entities {
		if !entity.IsActive {
			continue
		}
		options = append(options, &models.SubTemplateFieldOption{
			SubTempFieldId: subFieldId,
			OptionValue:    entity.Name,
			OptionLabel:    entity.Label(),
		})
	}
	return options
}

// RefreshFieldOptions re-runs the auto loader for a field that was
// previously populated from Tally.
func RefreshFieldOptions(ctx context.Context, connector *Connector, fieldId int) (int, error) {
	return LoadFieldOptions(ctx, connector, fieldId, LoadRequest{DataType: "auto"})
}

// resolveCollection maps a load request onto a Tally collection. The auto
// mode keys off naming conventions: vendor-ish names pull creditor
// ledgers, customer-ish names pull debtor ledgers, item-ish names pull
// stock items.
func resolveCollection(request LoadRequest, fieldName string) (EntityKind, string, error) {
	switch request.DataType {
	case "companies":
		return KindCompany, "", nil
	case "ledgers":
		return KindLedger, request.GroupFilter, nil
	case "stock_items":
		return KindStockItem, request.GroupFilter, nil
	case "customers":
		return KindLedger, GroupSundryDebtors, nil
	case "vendors":
		return KindLedger, GroupSundryCreditors, nil
	case "all_ledgers":
		return KindLedger, "", nil
	case "auto", "":
		return inferCollection(fieldName), inferGroupFilter(fieldName), nil
	default:
		return "", "", utils.NewValidationError("invalid data_type %q", request.DataType)
	}
}

func inferCollection(fieldName string) EntityKind {
	name := strings.ToLower(fieldName)
	switch {
	case containsAny(name, "item", "product", "stock"):
		return KindStockItem
	case strings.Contains(name, "company"):
		return KindCompany
	default:
		return KindLedger
	}
}

func inferGroupFilter(fieldName string) string {
	name := strings.ToLower(fieldName)
	switch {
	case containsAny(name, "vendor", "supplier", "creditor"):
		return GroupSundryCreditors
	case containsAny(name, "customer", "client", "debtor"):
		return GroupSundryDebtors
	default:
		return ""
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
