package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"github.com/shopspring/decimal"
)

// CanonicalDateFormat is the single display format every successfully parsed
// date is re-emitted in, regardless of which input format matched.
const CanonicalDateFormat = "02/01/2006"

// Accepted input date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
	"02-Jan-2006",
	"02-January-2006",
	"02.01.2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
}

var currencyCleanPattern = regexp.MustCompile(`[^\d,.\-]`)

// ConvertTemplateFieldValue coerces a raw extracted value to the declared
// type of a top-level template field. Dates come back as the canonical
// display string, never as a time.Time. SELECT values pass through
// unchanged; their semantic resolution is the reconcile package's job.
func ConvertTemplateFieldValue(value any, fieldType FieldType, fieldName string) (any, error) {
	strValue, empty := stringify(value)
	if empty {
		return nil, nil
	}

	switch fieldType {
	case FieldTypeText, FieldTypeSelect:
		return strValue, nil

	case FieldTypeNumber:
		return parseNumberString(strValue)

	case FieldTypeDate:
		parsed, err := ParseDateString(strValue)
		if err != nil {
			// Keep the raw value when no layout matches; the document is
			// still reviewable by a human.
			return strValue, nil
		}
		return parsed.Format(CanonicalDateFormat), nil

	case FieldTypeEmail:
		if !strings.Contains(strValue, "@") || !strings.Contains(strValue, ".") {
			return nil, conversionFailure(strValue, string(fieldType), fieldName, "invalid email format")
		}
		return strings.ToLower(strValue), nil

	case FieldTypeCurrency:
		return ParseCurrencyString(strValue)

	case FieldTypeTable:
		// Tables are handled row by row, never through this path.
		return value, nil

	default:
		return strValue, nil
	}
}

// ConvertSubTemplateFieldValue coerces a table cell to its declared column
// type.
func ConvertSubTemplateFieldValue(value any, dataType DataType, fieldName string) (any, error) {
	strValue, empty := stringify(value)
	if empty {
		return nil, nil
	}

	switch dataType {
	case DataTypeString, DataTypeSelect:
		return strValue, nil

	case DataTypeInteger:
		n, err := strconv.ParseInt(strings.ReplaceAll(strValue, ",", ""), 10, 64)
		if err != nil {
			return nil, conversionFailure(strValue, string(dataType), fieldName, err.Error())
		}
		return n, nil

	case DataTypeFloat:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strValue, ",", ""), 64)
		if err != nil {
			return nil, conversionFailure(strValue, string(dataType), fieldName, err.Error())
		}
		return f, nil

	case DataTypeDate:
		parsed, err := ParseDateString(strValue)
		if err != nil {
			return strValue, nil
		}
		return parsed.Format(CanonicalDateFormat), nil

	case DataTypeBoolean:
		b, err := ParseBooleanString(strValue)
		if err != nil {
			return nil, conversionFailure(strValue, string(dataType), fieldName, err.Error())
		}
		return b, nil

	default:
		return strValue, nil
	}
}

// SafeConvertTemplateFieldValue is the fail-open variant: on conversion
// failure it keeps the original raw value and returns the error message so
// the caller can attach it to the stored record for human review.
func SafeConvertTemplateFieldValue(value any, fieldType FieldType, fieldName string) (any, *string) {
	converted, err := ConvertTemplateFieldValue(value, fieldType, fieldName)
	if err != nil {
		msg := err.Error()
		return value, &msg
	}
	return converted, nil
}

func SafeConvertSubTemplateFieldValue(value any, dataType DataType, fieldName string) (any, *string) {
	converted, err := ConvertSubTemplateFieldValue(value, dataType, fieldName)
	if err != nil {
		msg := err.Error()
		return value, &msg
	}
	return converted, nil
}

// ParseDateString tries each accepted layout in order.
func ParseDateString(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, strings.Replace(dateStr, "Z", "+00:00", 1)); err == nil {
		return t, nil
	}
	return time.Time{}, utils.NewConversionError("unable to parse date: '%s'", dateStr)
}

// ParseCurrencyString strips symbols and thousands separators and parses an
// exact decimal. Money never goes through binary floating point.
func ParseCurrencyString(currencyStr string) (decimal.Decimal, error) {
	cleaned := currencyCleanPattern.ReplaceAllString(strings.TrimSpace(currencyStr), "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, utils.NewConversionError("unable to parse currency: '%s'", currencyStr)
	}
	return d, nil
}

var trueTokens = map[string]bool{
	"true": true, "1": true, "yes": true, "y": true, "on": true,
	"enable": true, "enabled": true, "active": true,
}

var falseTokens = map[string]bool{
	"false": true, "0": true, "no": true, "n": true, "off": true,
	"disable": true, "disabled": true, "inactive": true,
}

func ParseBooleanString(boolStr string) (bool, error) {
	cleaned := strings.ToLower(strings.TrimSpace(boolStr))
	if trueTokens[cleaned] {
		return true, nil
	}
	if falseTokens[cleaned] {
		return false, nil
	}
	return false, utils.NewConversionError("unable to parse boolean: '%s'", boolStr)
}

// FormatValue renders a converted value for persistence. Stored values are
// always text; the declared type governs interpretation, not storage.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

func parseNumberString(strValue string) (any, error) {
	cleaned := strings.ReplaceAll(strValue, ",", "")
	if strings.Contains(cleaned, ".") || strings.ContainsAny(cleaned, "eE") {
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, utils.NewConversionError("unable to parse number: '%s'", strValue)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil, utils.NewConversionError("unable to parse number: '%s'", strValue)
	}
	return n, nil
}

func stringify(value any) (str string, empty bool) {
	if value == nil {
		return "", true
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", value))
	if s == "" {
		return "", true
	}
	if f, ok := value.(float64); ok {
		// JSON numbers decode as float64; don't let %v mangle integers.
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s, false
}

func conversionFailure(value, declaredType, fieldName, reason string) error {
	if fieldName != "" {
		return utils.NewConversionError("failed to convert '%s' to %s for field '%s': %s", value, declaredType, fieldName, reason)
	}
	return utils.NewConversionError("failed to convert '%s' to %s: %s", value, declaredType, reason)
}
