package record

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Accessor provides path-based access to a record's field data, including
// nested fields using dotted paths, eg. "author.name". Writes are applied to
// a JSON snapshot and synced back into the record's data map.
//
// An Accessor is bound to the record it was created from and is not safe for
// concurrent use.
type Accessor struct {
	rec  *Record
	json string
}

// Accessor returns a path-based accessor over the record's field data.
func (r *Record) Accessor() (*Accessor, error) {
	data := r.Data
	if data == nil {
		data = make(map[string]interface{})
		r.Data = data
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize record data: %w", err)
	}
	return &Accessor{
		rec:  r,
		json: string(raw),
	}, nil
}

// Set sets the value identified by key. Existing fields keep their JSON type:
// setting a string field to a number is an error.
func (a *Accessor) Set(key string, value interface{}) error {
	result := gjson.Get(a.json, key)
	if result.Exists() {
		switch value.(type) {
		case string:
			if result.Type != gjson.String {
				return fmt.Errorf("tried to set field %s (%s) to a %T value", key, result.Type.String(), value)
			}
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			if result.Type != gjson.Number {
				return fmt.Errorf("tried to set field %s (%s) to a %T value", key, result.Type.String(), value)
			}
		case bool:
			if result.Type != gjson.True && result.Type != gjson.False {
				return fmt.Errorf("tried to set field %s (%s) to a %T value", key, result.Type.String(), value)
			}
		}
	}

	updated, err := sjson.Set(a.json, key, value)
	if err != nil {
		return err
	}
	a.json = updated
	return a.sync()
}

// Delete removes the value identified by key.
func (a *Accessor) Delete(key string) error {
	updated, err := sjson.Delete(a.json, key)
	if err != nil {
		return err
	}
	a.json = updated
	return a.sync()
}

// sync writes the JSON snapshot back into the record's data map.
func (a *Accessor) sync() error {
	data := make(map[string]interface{})
	if err := json.Unmarshal([]byte(a.json), &data); err != nil {
		return fmt.Errorf("failed to sync record data: %w", err)
	}
	a.rec.Data = data
	if id, ok := data["id"].(string); ok {
		a.rec.ID = id
	}
	return nil
}

// Get returns the raw value found by the given key and whether it exists.
func (a *Accessor) Get(key string) (value interface{}, ok bool) {
	result := gjson.Get(a.json, key)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// GetString returns the string found by the given key and whether it could be
// successfully extracted.
func (a *Accessor) GetString(key string) (value string, ok bool) {
	result := gjson.Get(a.json, key)
	if !result.Exists() || result.Type != gjson.String {
		return "", false
	}
	return result.String(), true
}

// GetStringArray returns the string array found by the given key and whether
// it could be successfully extracted.
func (a *Accessor) GetStringArray(key string) (value []string, ok bool) {
	result := gjson.Get(a.json, key)
	if !result.Exists() || !result.IsArray() {
		return nil, false
	}
	elements := result.Array()
	value = make([]string, 0, len(elements))
	for _, element := range elements {
		if element.Type != gjson.String {
			return nil, false
		}
		value = append(value, element.String())
	}
	return value, true
}

// GetInt returns the int found by the given key and whether it could be
// successfully extracted.
func (a *Accessor) GetInt(key string) (value int64, ok bool) {
	result := gjson.Get(a.json, key)
	if !result.Exists() || result.Type != gjson.Number {
		return 0, false
	}
	return result.Int(), true
}

// GetFloat returns the float found by the given key and whether it could be
// successfully extracted.
func (a *Accessor) GetFloat(key string) (value float64, ok bool) {
	result := gjson.Get(a.json, key)
	if !result.Exists() || result.Type != gjson.Number {
		return 0, false
	}
	return result.Float(), true
}

// GetBool returns the bool found by the given key and whether it could be
// successfully extracted.
func (a *Accessor) GetBool(key string) (value bool, ok bool) {
	result := gjson.Get(a.json, key)
	switch {
	case !result.Exists():
		return false, false
	case result.Type == gjson.True:
		return true, true
	case result.Type == gjson.False:
		return false, true
	default:
		return false, false
	}
}

// Exists reports whether the given key exists.
func (a *Accessor) Exists(key string) bool {
	return gjson.Get(a.json, key).Exists()
}

// JSON returns the current JSON snapshot of the record data.
func (a *Accessor) JSON() string {
	return a.json
}
