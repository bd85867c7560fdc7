package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/puckstats/shotrecorder/internal/database"
	"github.com/puckstats/shotrecorder/internal/storage/gormstore"
	"github.com/puckstats/shotrecorder/internal/storage/jsonfile"

	"github.com/rs/zerolog"
)

func openStore(dbPath string) (*gormstore.Backend, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database %s: %w", dbPath, err)
	}
	db, err := database.GetSqliteDB(dbPath)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	return gormstore.New(db, zerolog.Nop(), sqlDB.Close), nil
}

// exportSession rebuilds the session document of id from a SQLite mirror.
func exportSession(dbPath, id string, w io.Writer) error {
	sid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", id, err)
	}
	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.LoadSession(sid)
	if err != nil {
		return err
	}
	data, err := jsonfile.Marshal(&sess, true)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// listSessions prints the sessions of a SQLite mirror, newest first.
func listSessions(dbPath string, w io.Writer) error {
	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.StartedAt.UTC().Format("2006-01-02T15:04:05Z"), s.ServerName, s.ShotCount)
	}
	return nil
}
