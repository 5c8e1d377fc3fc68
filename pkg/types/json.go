package types

// JSONMap is a free-form JSON object persisted via the gorm json serializer.
type JSONMap map[string]any
