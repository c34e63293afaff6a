// Package parameters handles generic configuration Params, a
// map[string]string parsed from user-provided "key=value,key=value" strings,
// and applies them as hyperparameters to a GoMLX context.
package parameters

import (
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/pkg/errors"
)

// Params represent generic configuration parameters.
type Params map[string]string

// NewFromConfigString creates Params from a user configuration string, a
// comma-separated list of key=value assignments. A key without '=' maps to
// the empty string, which boolean parsing interprets as true.
func NewFromConfigString(config string) Params {
	params := make(Params)
	if config == "" {
		return params
	}
	for _, part := range strings.Split(config, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			params[key] = ""
			continue
		}
		params[key] = value
	}
	return params
}

// GetParamOr parses the parameter to the given type if the key is present,
// otherwise it returns defaultValue.
func GetParamOr[T interface {
	bool | int | float32 | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	value, exists := params[key]
	if !exists {
		return defaultValue, nil
	}
	var parsed any
	var err error
	switch any(defaultValue).(type) {
	case string:
		parsed = value
	case bool:
		if value == "" {
			parsed = true
		} else {
			parsed, err = strconv.ParseBool(value)
		}
	case int:
		parsed, err = strconv.Atoi(value)
	case float64:
		parsed, err = strconv.ParseFloat(value, 64)
	case float32:
		var v64 float64
		v64, err = strconv.ParseFloat(value, 32)
		parsed = float32(v64)
	}
	if err != nil {
		return defaultValue, errors.Wrapf(err, "failed to parse parameter %s=%q", key, value)
	}
	return parsed.(T), nil
}

// PopParamOr is like GetParamOr, but also deletes the retrieved key from
// params.
func PopParamOr[T interface {
	bool | int | float32 | float64 | string
}](params Params, key string, defaultValue T) (T, error) {
	value, err := GetParamOr(params, key, defaultValue)
	if err != nil {
		return value, err
	}
	delete(params, key)
	return value, nil
}

// ApplyToContext overwrites the context's root-scope hyperparameters with the
// matching entries of params, parsing each value to the type of the context's
// default. Keys left in params that match no context hyperparameter are an
// error: they would otherwise be silently ignored typos.
func ApplyToContext(params Params, ctx *context.Context) error {
	var err error
	ctx.EnumerateParams(func(scope, key string, defaultAny any) {
		if err != nil || scope != context.RootScope {
			return
		}
		switch defaultValue := defaultAny.(type) {
		case string:
			err = applyParam(params, ctx, key, defaultValue)
		case bool:
			err = applyParam(params, ctx, key, defaultValue)
		case int:
			err = applyParam(params, ctx, key, defaultValue)
		case float64:
			err = applyParam(params, ctx, key, defaultValue)
		case float32:
			err = applyParam(params, ctx, key, defaultValue)
		default:
			err = errors.Errorf("hyperparameter %q has unsupported type %T", key, defaultAny)
		}
	})
	if err != nil {
		return err
	}
	if len(params) > 0 {
		unknown := make([]string, 0, len(params))
		for key := range params {
			unknown = append(unknown, key)
		}
		return errors.Errorf("unknown hyperparameters: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// applyParam pops one key from params and sets it in the context.
func applyParam[T interface {
	bool | int | float32 | float64 | string
}](params Params, ctx *context.Context, key string, defaultValue T) error {
	value, err := PopParamOr(params, key, defaultValue)
	if err != nil {
		return errors.WithMessagef(err, "applying hyperparameter %q", key)
	}
	ctx.SetParam(key, value)
	return nil
}
