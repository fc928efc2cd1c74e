// Package bbolt implements the mesh-replica stores over a local BoltDB
// file. Each record is one JSON value; write transactions are serialized by
// BoltDB, which is what makes Update a safe compare-and-update merge point
// on this replica.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/p2pclaw/hive/internal/domain"
	"github.com/p2pclaw/hive/internal/storage"
)

const (
	submissionBucket = "submissions"
	agentBucket      = "agents"
	offenderBucket   = "offenders"
)

// Store provides BoltDB-backed submission, agent, and offender stores.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutSubmission persists a submission record.
func (s *Store) PutSubmission(ctx context.Context, sub domain.Submission) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(sub.ID) == "" {
		return fmt.Errorf("submission id is required")
	}
	return s.putJSON(submissionBucket, sub.ID, sub)
}

// GetSubmission fetches a submission record by ID.
func (s *Store) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	var sub domain.Submission
	if err := s.ready(ctx); err != nil {
		return sub, err
	}
	if strings.TrimSpace(id) == "" {
		return sub, fmt.Errorf("submission id is required")
	}
	err := s.getJSON(submissionBucket, id, &sub)
	return sub, err
}

// UpdateSubmission re-reads the latest submission inside one write
// transaction, applies fn, and persists the result.
func (s *Store) UpdateSubmission(ctx context.Context, id string, fn func(*domain.Submission) error) (domain.Submission, error) {
	var sub domain.Submission
	if err := s.ready(ctx); err != nil {
		return sub, err
	}
	if strings.TrimSpace(id) == "" {
		return sub, fmt.Errorf("submission id is required")
	}
	if fn == nil {
		return sub, fmt.Errorf("update function is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		if bucket == nil {
			return fmt.Errorf("submissions bucket is missing")
		}
		payload := bucket.Get([]byte(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &sub); err != nil {
			return fmt.Errorf("unmarshal submission: %w", err)
		}
		if err := fn(&sub); err != nil {
			return err
		}
		updated, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("marshal submission: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns all known submissions.
func (s *Store) ListSubmissions(ctx context.Context) ([]domain.Submission, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var subs []domain.Submission
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(submissionBucket))
		if bucket == nil {
			return fmt.Errorf("submissions bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var sub domain.Submission
			if err := json.Unmarshal(payload, &sub); err != nil {
				return fmt.Errorf("unmarshal submission: %w", err)
			}
			subs = append(subs, sub)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// EnsureAgent creates the agent record on first contact. The returned bool
// reports whether this call created the record.
func (s *Store) EnsureAgent(ctx context.Context, agent domain.Agent) (domain.Agent, bool, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Agent{}, false, err
	}
	if strings.TrimSpace(agent.ID) == "" {
		return domain.Agent{}, false, fmt.Errorf("agent id is required")
	}

	created := false
	stored := agent
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(agentBucket))
		if bucket == nil {
			return fmt.Errorf("agents bucket is missing")
		}
		payload := bucket.Get([]byte(agent.ID))
		if payload != nil {
			return json.Unmarshal(payload, &stored)
		}
		created = true
		encoded, err := json.Marshal(agent)
		if err != nil {
			return fmt.Errorf("marshal agent: %w", err)
		}
		return bucket.Put([]byte(agent.ID), encoded)
	})
	if err != nil {
		return domain.Agent{}, false, err
	}
	return stored, created, nil
}

// GetAgent fetches an agent record by ID.
func (s *Store) GetAgent(ctx context.Context, id string) (domain.Agent, error) {
	var agent domain.Agent
	if err := s.ready(ctx); err != nil {
		return agent, err
	}
	if strings.TrimSpace(id) == "" {
		return agent, fmt.Errorf("agent id is required")
	}
	err := s.getJSON(agentBucket, id, &agent)
	return agent, err
}

// UpdateAgent re-reads the latest agent record inside one write
// transaction, applies fn, and persists the result.
func (s *Store) UpdateAgent(ctx context.Context, id string, fn func(*domain.Agent) error) (domain.Agent, error) {
	var agent domain.Agent
	if err := s.ready(ctx); err != nil {
		return agent, err
	}
	if strings.TrimSpace(id) == "" {
		return agent, fmt.Errorf("agent id is required")
	}
	if fn == nil {
		return agent, fmt.Errorf("update function is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(agentBucket))
		if bucket == nil {
			return fmt.Errorf("agents bucket is missing")
		}
		payload := bucket.Get([]byte(id))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &agent); err != nil {
			return fmt.Errorf("unmarshal agent: %w", err)
		}
		if err := fn(&agent); err != nil {
			return err
		}
		updated, err := json.Marshal(agent)
		if err != nil {
			return fmt.Errorf("marshal agent: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
	if err != nil {
		return domain.Agent{}, err
	}
	return agent, nil
}

// ListAgents returns all known agents.
func (s *Store) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var agents []domain.Agent
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(agentBucket))
		if bucket == nil {
			return fmt.Errorf("agents bucket is missing")
		}
		return bucket.ForEach(func(_, payload []byte) error {
			var agent domain.Agent
			if err := json.Unmarshal(payload, &agent); err != nil {
				return fmt.Errorf("unmarshal agent: %w", err)
			}
			agents = append(agents, agent)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// GetOffender fetches an offender record by agent ID.
func (s *Store) GetOffender(ctx context.Context, agentID string) (domain.OffenderRecord, error) {
	var record domain.OffenderRecord
	if err := s.ready(ctx); err != nil {
		return record, err
	}
	if strings.TrimSpace(agentID) == "" {
		return record, fmt.Errorf("agent id is required")
	}
	err := s.getJSON(offenderBucket, agentID, &record)
	return record, err
}

// UpdateOffender creates the offender record lazily when absent, applies
// fn, and persists the result in one write transaction.
func (s *Store) UpdateOffender(ctx context.Context, agentID string, fn func(*domain.OffenderRecord) error) (domain.OffenderRecord, error) {
	var record domain.OffenderRecord
	if err := s.ready(ctx); err != nil {
		return record, err
	}
	if strings.TrimSpace(agentID) == "" {
		return record, fmt.Errorf("agent id is required")
	}
	if fn == nil {
		return record, fmt.Errorf("update function is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(offenderBucket))
		if bucket == nil {
			return fmt.Errorf("offenders bucket is missing")
		}
		record = domain.OffenderRecord{AgentID: agentID}
		if payload := bucket.Get([]byte(agentID)); payload != nil {
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("unmarshal offender: %w", err)
			}
		}
		if err := fn(&record); err != nil {
			return err
		}
		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal offender: %w", err)
		}
		return bucket.Put([]byte(agentID), updated)
	})
	if err != nil {
		return domain.OffenderRecord{}, err
	}
	return record, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) putJSON(bucketName, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", bucketName)
		}
		return bucket.Put([]byte(key), payload)
	})
}

func (s *Store) getJSON(bucketName, key string, target any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", bucketName)
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("unmarshal record: %w", err)
		}
		return nil
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{submissionBucket, agentBucket, offenderBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
