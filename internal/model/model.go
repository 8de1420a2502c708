package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is the list of structs that represent tables in the schema.
var DatabaseModels = []interface{}{
	&Run{},
	&Sample{},
}

// Run is a recording session
type Run struct {
	gorm.Model
	Name        string         `json:"name" gorm:"size:127"`
	StartedAt   time.Time      `json:"startedAt" gorm:"index"`
	EndedAt     *time.Time     `json:"endedAt"`
	Settings    datatypes.JSON `json:"settings"`
	SampleCount int            `json:"sampleCount"`
	PathLength  float64        `json:"pathLength"`
	PathWKT     string         `json:"pathWkt" gorm:"column:path_wkt"`
	Samples     []Sample       `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

func (*Run) TableName() string {
	return "runs"
}

// Sample is a recorded pose
type Sample struct {
	ID      uint      `json:"id" gorm:"primarykey;autoIncrement"`
	RunID   uint      `json:"runId" gorm:"index:idx_sample_run_seq,priority:1"`
	Seq     uint64    `json:"seq" gorm:"index:idx_sample_run_seq,priority:2"`
	Time    time.Time `json:"time"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Heading float64   `json:"heading"`
	TargetX int       `json:"targetX"`
	TargetY int       `json:"targetY"`
}

func (*Sample) TableName() string {
	return "samples"
}
