package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})

	structValidator = newValidator()
)

// Decode maps the schemaless wire payload onto the typed request out.
// Fields are matched by their `mapstructure` tag; decimals accept strings
// and numbers, ids accept their canonical string form.
func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			decimalHook,
			uuidHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	return dec.Decode(data)
}

func decimalHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case json.Number:
		return decimal.NewFromString(v.String())
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case nil:
		return decimal.Zero, nil
	default:
		return nil, fmt.Errorf("cannot decode %T as decimal", data)
	}
}

func uuidHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != uuidType {
		return data, nil
	}
	switch v := data.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return uuid.Nil, nil
		}
		return uuid.Parse(strings.TrimSpace(v))
	case nil:
		return uuid.Nil, nil
	default:
		return nil, fmt.Errorf("cannot decode %T as id", data)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validateStruct runs the `validate` struct tags of data and returns one
// message per violated field.
func validateStruct(data any) []string {
	if reflect.Indirect(reflect.ValueOf(data)).Kind() != reflect.Struct {
		return nil
	}
	err := structValidator.Struct(data)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return msgs
}
