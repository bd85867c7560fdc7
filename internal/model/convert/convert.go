// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/puckstats/shotrecorder/internal/geo"
	"github.com/puckstats/shotrecorder/internal/model"
	"github.com/puckstats/shotrecorder/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// CoreToSession converts a core.Session into its row and the rows of its shots, in order.
func CoreToSession(s *core.Session) (model.Session, []model.Shot, error) {
	row := model.Session{
		ID:         s.ID.String(),
		ServerName: s.ServerName,
		StartedAt:  s.Start,
		ShotCount:  len(s.Shots),
	}
	if s.Physics != nil {
		data, err := json.Marshal(s.Physics)
		if err != nil {
			return model.Session{}, nil, fmt.Errorf("failed to encode physics: %w", err)
		}
		row.Physics = datatypes.JSON(data)
	}

	shots := make([]model.Shot, 0, len(s.Shots))
	for i, r := range s.Shots {
		shot, err := CoreToShot(row.ID, i, r)
		if err != nil {
			return model.Session{}, nil, fmt.Errorf("shot %d: %w", i, err)
		}
		shots = append(shots, shot)
	}
	return row, shots, nil
}

// CoreToShot converts a core.ShotRecord to a GORM model.Shot at position seq of its session.
func CoreToShot(sessionID string, seq int, r core.ShotRecord) (model.Shot, error) {
	var err error
	shot := model.Shot{
		SessionID:      sessionID,
		Seq:            seq,
		PlayerName:     r.Shooter.Name,
		PlayerNumber:   r.Shooter.Number,
		Team:           r.Shooter.Team.String(),
		PlayerHand:     nullString(string(r.ShooterHand)),
		ShotSpeed:      r.ShotSpeed,
		ShotType:       r.Type.String(),
		TargetGoal:     r.TargetGoal.String(),
		Time:           r.Timestamp,
		Period:         r.Period,
		IsOvertime:     r.IsOvertime,
	}
	if shot.PlayerPosition, err = geo.PointXYZ(r.ShooterPosition); err != nil {
		return model.Shot{}, fmt.Errorf("shooter position: %w", err)
	}
	if shot.PuckPosition, err = geo.PointXYZ(r.PuckPosition); err != nil {
		return model.Shot{}, fmt.Errorf("puck position: %w", err)
	}
	if shot.Direction, err = geo.PointXYZ(r.Direction); err != nil {
		return model.Shot{}, fmt.Errorf("direction: %w", err)
	}
	if r.Goalie != nil {
		shot.GoalieName = sql.NullString{String: r.Goalie.Name, Valid: true}
		shot.GoalieHand = nullString(string(r.Goalie.Hand))
	}
	if r.GoalieHitPosition != nil {
		if shot.GoalieHitPosition, err = geo.PointXYZ(*r.GoalieHitPosition); err != nil {
			return model.Shot{}, fmt.Errorf("goalie hit position: %w", err)
		}
	}
	return shot, nil
}

// SessionToCore rebuilds a core.Session from its rows. Shots must be ordered by Seq.
func SessionToCore(row model.Session, shots []model.Shot) (core.Session, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return core.Session{}, fmt.Errorf("invalid session id %q: %w", row.ID, err)
	}
	s := core.Session{
		ID:         id,
		ServerName: row.ServerName,
		Start:      row.StartedAt,
		Shots:      make([]core.ShotRecord, 0, len(shots)),
	}
	if len(row.Physics) > 0 && string(row.Physics) != "null" {
		var pc core.PhysicsConstants
		if err := json.Unmarshal(row.Physics, &pc); err != nil {
			return core.Session{}, fmt.Errorf("failed to decode physics: %w", err)
		}
		s.Physics = &pc
	}
	for _, shot := range shots {
		rec, err := ShotToCore(shot)
		if err != nil {
			return core.Session{}, fmt.Errorf("shot %d: %w", shot.Seq, err)
		}
		s.Shots = append(s.Shots, rec)
	}
	return s, nil
}

// ShotToCore converts a GORM model.Shot to a core.ShotRecord.
func ShotToCore(shot model.Shot) (core.ShotRecord, error) {
	team, err := core.ParseTeam(shot.Team)
	if err != nil {
		return core.ShotRecord{}, err
	}
	target, err := core.ParseTeam(shot.TargetGoal)
	if err != nil {
		return core.ShotRecord{}, err
	}
	shotType, err := core.ParseShotType(shot.ShotType)
	if err != nil {
		return core.ShotRecord{}, err
	}

	rec := core.ShotRecord{
		Shooter: core.Shooter{
			Name:   shot.PlayerName,
			Number: shot.PlayerNumber,
			Team:   team,
		},
		ShooterHand:     core.Handedness(shot.PlayerHand.String),
		ShooterPosition: pointToVec3(shot.PlayerPosition),
		PuckPosition:    pointToVec3(shot.PuckPosition),
		ShotSpeed:       shot.ShotSpeed,
		Direction:       pointToVec3(shot.Direction),
		Type:            shotType,
		TargetGoal:      target,
		Timestamp:       shot.Time,
		Period:          shot.Period,
		IsOvertime:      shot.IsOvertime,
	}
	if shot.GoalieName.Valid {
		rec.Goalie = &core.Goalie{
			Name: shot.GoalieName.String,
			Hand: core.Handedness(shot.GoalieHand.String),
		}
	}
	if hit, ok := geo.Vec3FromPoint(shot.GoalieHitPosition); ok {
		rec.GoalieHitPosition = &hit
	}
	return rec, nil
}

// pointToVec3 converts a geom.Point to a core.Vec3; the empty point maps to zero.
func pointToVec3(p geom.Point) core.Vec3 {
	v, _ := geo.Vec3FromPoint(p)
	return v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
