package blueprint

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"checkloader/internal/catalog"
)

// Configurable field keys as they appear in defaults, segment metadata, and forEach overrides.
const (
	FieldBaseURL             = "baseUrl"
	FieldIntervalMinutes     = "intervalMinutes"
	FieldTimeoutMs           = "timeoutMs"
	FieldNotifyAfterFailures = "notifyAfterFailures"
	FieldNotifyAgainEvery    = "notifyAgainEvery"
	FieldNotifyWhenBackUp    = "notifyWhenBackUp"
	FieldPriority            = "priority"
	FieldRegions             = "regions"
	FieldTeamIDs             = "teamIds"
	FieldUserIDs             = "userIds"
	FieldIntegrationIDs      = "integrationIds"
	FieldCustomMessage       = "customMessage"
)

// requiredFields must be supplied by the merged layers of every blueprint.
var requiredFields = []string{
	FieldIntervalMinutes,
	FieldTimeoutMs,
	FieldNotifyAfterFailures,
	FieldNotifyAgainEvery,
	FieldNotifyWhenBackUp,
	FieldRegions,
	FieldTeamIDs,
	FieldUserIDs,
	FieldIntegrationIDs,
	FieldPriority,
	FieldCustomMessage,
}

// derivedFields are computed from blueprint state and never accepted from layers.
var derivedFields = map[string]struct{}{
	"path":      {},
	"tags":      {},
	"encrypted": {},
}

// fieldName is tolerated in segment metadata as a display label; Name() always returns Path.
const fieldName = "name"

// RequiredFields returns the required field keys in validation order.
func RequiredFields() []string {
	return append([]string(nil), requiredFields...)
}

// merge overwrites blueprint fields with one override layer.
// Params: layer mapping keyed by configurable field names.
// Returns: InvalidFieldError for values that cannot be typed.
func (b *Blueprint) merge(layer map[string]any) error {
	keys := make([]string, 0, len(layer))
	for key := range layer {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := b.mergeField(key, layer[key]); err != nil {
			return err
		}
	}
	return nil
}

// mergeField converts and assigns one layer value.
// Params: field key and decoded value.
// Returns: conversion error.
func (b *Blueprint) mergeField(key string, value any) error {
	if _, derived := derivedFields[key]; derived {
		return &InvalidFieldError{Field: key, Value: value, Reason: "derived field cannot be overridden"}
	}
	if key == fieldName {
		return nil
	}

	var err error
	switch key {
	case FieldBaseURL:
		b.BaseURL, err = asString(key, value)
	case FieldIntervalMinutes:
		b.IntervalMinutes, err = asInt(key, value)
	case FieldTimeoutMs:
		b.TimeoutMs, err = asInt(key, value)
	case FieldNotifyAfterFailures:
		b.NotifyAfterFailures, err = asInt(key, value)
	case FieldNotifyAgainEvery:
		b.NotifyAgainEvery, err = asInt(key, value)
	case FieldNotifyWhenBackUp:
		b.NotifyWhenBackUp, err = asBool(key, value)
	case FieldPriority:
		b.Priority, err = asString(key, value)
	case FieldRegions:
		b.Regions, err = asStringList(key, value)
	case FieldTeamIDs:
		b.TeamIDs, err = asStringList(key, value)
	case FieldUserIDs:
		b.UserIDs, err = asStringList(key, value)
	case FieldIntegrationIDs:
		b.IntegrationIDs, err = asStringList(key, value)
	case FieldCustomMessage:
		b.CustomMessage, err = asOptionalString(key, value)
	default:
		if b.Extra == nil {
			b.Extra = make(map[string]any)
		}
		b.Extra[key] = catalog.CloneValue(value)
	}
	if err != nil {
		return err
	}
	if b.present == nil {
		b.present = make(map[string]struct{})
	}
	b.present[key] = struct{}{}
	return nil
}

func asInt(key string, value any) (int, error) {
	switch typed := value.(type) {
	case int:
		return typed, nil
	case int64:
		return int(typed), nil
	case uint64:
		return int(typed), nil
	case float64:
		if typed != math.Trunc(typed) {
			return 0, &InvalidFieldError{Field: key, Value: value, Reason: "expected integer"}
		}
		return int(typed), nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, &InvalidFieldError{Field: key, Value: value, Reason: "expected integer"}
		}
		return parsed, nil
	default:
		return 0, &InvalidFieldError{Field: key, Value: value, Reason: "expected integer"}
	}
}

func asBool(key string, value any) (bool, error) {
	switch typed := value.(type) {
	case bool:
		return typed, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		if err != nil {
			return false, &InvalidFieldError{Field: key, Value: value, Reason: "expected boolean"}
		}
		return parsed, nil
	default:
		return false, &InvalidFieldError{Field: key, Value: value, Reason: "expected boolean"}
	}
}

func asString(key string, value any) (string, error) {
	switch typed := value.(type) {
	case nil:
		return "", &InvalidFieldError{Field: key, Value: value, Reason: "expected string"}
	case string:
		return typed, nil
	case map[string]any, []any:
		return "", &InvalidFieldError{Field: key, Value: value, Reason: "expected scalar"}
	default:
		return fmt.Sprint(typed), nil
	}
}

func asOptionalString(key string, value any) (*string, error) {
	if value == nil {
		return nil, nil
	}
	str, err := asString(key, value)
	if err != nil {
		return nil, err
	}
	return &str, nil
}

// asStringList normalizes scalar/list values into strings; null yields an empty list.
func asStringList(key string, value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, typed...), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			str, err := asString(key, item)
			if err != nil {
				return nil, err
			}
			out = append(out, str)
		}
		return out, nil
	case map[string]any:
		return nil, &InvalidFieldError{Field: key, Value: value, Reason: "expected list"}
	default:
		str, err := asString(key, typed)
		if err != nil {
			return nil, err
		}
		return []string{str}, nil
	}
}
