package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"moa-report-jira/internal/common"
	"moa-report-jira/internal/interfaces"

	bolt "go.etcd.io/bbolt"
)

const (
	sessionsBucket = "sessions"
	metadataBucket = "metadata"
)

type sessionRecord struct {
	Credentials interfaces.Credentials `json:"credentials"`
	Created     time.Time              `json:"created"`
}

type sessionStore struct {
	db *bolt.DB
}

// NewSessionStore opens the bbolt-backed credential session store. Sessions
// let a browser hold Jira credentials across report requests without
// re-sending them on every call.
func NewSessionStore(config *common.ServerConfig) (interfaces.SessionStore, error) {
	dbDir := filepath.Dir(config.SessionPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := bolt.Open(config.SessionPath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(metadataBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &sessionStore{db: db}, nil
}

func (s *sessionStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sessionStore) SaveSession(id string, creds interfaces.Credentials) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))

		record := sessionRecord{
			Credentials: creds,
			Created:     time.Now(),
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		return bucket.Put([]byte(id), data)
	})
}

func (s *sessionStore) LoadSession(id string) (*interfaces.Credentials, error) {
	var creds *interfaces.Credentials

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		var record sessionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}

		creds = &record.Credentials
		return nil
	})

	return creds, err
}

func (s *sessionStore) DeleteSession(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		return bucket.Delete([]byte(id))
	})
}
