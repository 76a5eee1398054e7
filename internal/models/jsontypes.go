package models

import "gorm.io/datatypes"

// JSON-backed column types. The columns are declared as text so the same
// schema works on postgres and sqlite; datatypes writes them as strings.

// RoleList is an ordered list of roles persisted as a JSON array.
type RoleList = datatypes.JSONSlice[Role]

// StringList is a JSON array of strings.
type StringList = datatypes.JSONSlice[string]

// JSONMap is a free-form JSON object. Numbers scan back as json.Number.
type JSONMap = datatypes.JSONMap

// RawConfig holds an already-encoded JSON document.
type RawConfig = datatypes.JSON
