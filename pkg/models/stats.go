package models

// StatsCounter is one named counter of the aggregated lead statistics.
// The full snapshot is the set of all rows; see analytics.Aggregator.
type StatsCounter struct {
	Key   string `gorm:"column:name;primaryKey;type:varchar(255)"`
	Value int64  `gorm:"column:value;not null"`
}

// TableName pins the counter table name
func (StatsCounter) TableName() string {
	return "stats_counters"
}
