package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Shot{},
}

// Session is one match worth of shots. ID is the session uuid.
type Session struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	ServerName string         `json:"serverName" gorm:"size:127;index:idx_session_server"`
	StartedAt  time.Time      `json:"startedAt" gorm:"index:idx_session_started"`
	Physics    datatypes.JSON `json:"physics"` // core.PhysicsConstants, null until captured
	ShotCount  int            `json:"shotCount"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Shot is one classified shot. Positions are XYZ points; GoalieHitPosition
// is the empty point when the goalie was not hit.
type Shot struct {
	ID                uint           `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID         string         `json:"sessionId" gorm:"size:36;index:idx_shot_session_seq,priority:1"`
	Session           Session        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Seq               int            `json:"seq" gorm:"index:idx_shot_session_seq,priority:2"`
	PlayerName        string         `json:"playerName" gorm:"size:64;index:idx_shot_player"`
	PlayerNumber      int            `json:"playerNumber"`
	Team              string         `json:"team" gorm:"size:8"`
	PlayerHand        sql.NullString `json:"playerHand" gorm:"size:8"`
	GoalieName        sql.NullString `json:"goalieName" gorm:"size:64"`
	GoalieHand        sql.NullString `json:"goalieHand" gorm:"size:8"`
	PlayerPosition    geom.Point     `json:"playerPosition"`
	PuckPosition      geom.Point     `json:"puckPosition"`
	Direction         geom.Point     `json:"direction"`
	GoalieHitPosition geom.Point     `json:"goalieHitPosition"`
	ShotSpeed         float64        `json:"shotSpeed"`
	ShotType          string         `json:"shotType" gorm:"size:16;index:idx_shot_type"`
	TargetGoal        string         `json:"targetGoal" gorm:"size:8"`
	Time              time.Time      `json:"time"`
	Period            int            `json:"period"`
	IsOvertime        bool           `json:"isOvertime"`
}

func (*Shot) TableName() string {
	return "shots"
}
