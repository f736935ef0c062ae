package helpers

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// SchemaForStruct reflects a Go struct into a JSON-schema-shaped map suitable
// for a provider's structured-output configuration. The schema is inlined
// (no $defs indirection) so it can be embedded verbatim in a request body.
func SchemaForStruct(v interface{}) (map[string]interface{}, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, errors.New("cannot reflect schema for nil value")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("cannot reflect schema for non-struct type %s", t.Kind())
	}

	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.ReflectFromType(t)

	b, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal reflected schema")
	}

	var ret map[string]interface{}
	if err := json.Unmarshal(b, &ret); err != nil {
		return nil, errors.Wrap(err, "failed to round-trip reflected schema")
	}

	return ret, nil
}
