package sqlite

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func datatypesMap(v map[string]string) datatypes.JSONType[map[string]string] {
	return datatypes.NewJSONType(v)
}

func stringSlice(v []string) datatypes.JSONSlice[string] {
	if v == nil {
		v = []string{}
	}
	return datatypes.JSONSlice[string](v)
}

func fromStringSlice(v datatypes.JSONSlice[string]) []string {
	if v == nil {
		return []string{}
	}
	return []string(v)
}

func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func rawJSON(v datatypes.JSON) json.RawMessage {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	return json.RawMessage(v)
}
