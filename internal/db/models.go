package db

// KVEntry backs the client-local key-value store. Values are opaque
// strings, usually JSON documents written whole on every save.
type KVEntry struct {
	Key       string `gorm:"column:key;primaryKey"`
	Value     string `gorm:"column:value;not null;default:''"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;default:0"`
}

func (KVEntry) TableName() string { return "kv_entries" }
