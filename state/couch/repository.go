package couch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	_ "github.com/go-kivik/couchdb/v3"
	"github.com/go-kivik/kivik/v3"
	"github.com/joho/godotenv"
	"github.com/project-flogo/core/support/log"

	"github.com/project-flogo/petriflow/state"
)

const (
	EnvURL      = "PETRIFLOW_COUCHDB_URL"
	EnvDatabase = "PETRIFLOW_COUCHDB_DATABASE"

	DatabaseDefault = "petriflow"
	TimeoutDefault  = 10 * time.Second

	typeSnapshot = "snapshot"
	typeStep     = "step"
	typeState    = "state"
)

var logger = log.ChildLogger(log.RootLogger(), "petriflow-couch")

// Config holds the CouchDB connection settings
type Config struct {
	URL      string
	Database string
	Timeout  time.Duration
}

// ConfigFromEnv reads the connection settings from the environment, after
// loading the specified env files
func ConfigFromEnv(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, err
		}
	}

	url, ok := os.LookupEnv(EnvURL)
	if !ok || url == "" {
		return nil, fmt.Errorf("missing env var: %s", EnvURL)
	}

	cfg := &Config{URL: url, Database: DatabaseDefault, Timeout: TimeoutDefault}
	if db, ok := os.LookupEnv(EnvDatabase); ok && db != "" {
		cfg.Database = db
	}
	return cfg, nil
}

type snapshotDoc struct {
	ID       string          `json:"_id"`
	Rev      string          `json:"_rev,omitempty"`
	Type     string          `json:"type"`
	Snapshot *state.Snapshot `json:"snapshot"`
}

type stepDoc struct {
	ID   string      `json:"_id"`
	Type string      `json:"type"`
	Step *state.Step `json:"step"`
}

type stateDoc struct {
	ID    string           `json:"_id"`
	Type  string           `json:"type"`
	State *state.CaseState `json:"state"`
}

// Repository stores case snapshots and step records as CouchDB documents
type Repository struct {
	mu      sync.Mutex
	db      *kivik.DB
	revs    map[string]string
	timeout time.Duration
}

// Open connects to CouchDB, creating the database if it does not exist
func Open(cfg *Config) (*Repository, error) {

	client, err := kivik.New("couch", cfg.URL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = TimeoutDefault
	}
	name := cfg.Database
	if name == "" {
		name = DatabaseDefault
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	exists, err := client.DBExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.CreateDB(ctx, name); err != nil {
			return nil, err
		}
		logger.Infof("Created CouchDB database '%s'", name)
	}

	return &Repository{
		db:      client.DB(context.Background(), name),
		revs:    make(map[string]string),
		timeout: timeout,
	}, nil
}

func (r *Repository) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func snapshotID(caseID string) string {
	return typeSnapshot + ":" + caseID
}

func stepID(caseID string, id int) string {
	return fmt.Sprintf("%s:%s:%08d", typeStep, caseID, id)
}

func stateID(caseID string, status string) string {
	return fmt.Sprintf("%s:%s:%s", typeState, caseID, status)
}

// Save stores the snapshot, replacing the document of the previous one
func (r *Repository) Save(snapshot *state.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := r.context()
	defer cancel()

	id := snapshotID(snapshot.ID)
	doc := &snapshotDoc{ID: id, Rev: r.revs[id], Type: typeSnapshot, Snapshot: snapshot}

	rev, err := r.db.Put(ctx, id, doc)
	if kivik.StatusCode(err) == http.StatusConflict {
		// written by another process, retry once on the current revision
		if doc.Rev, err = r.currentRev(ctx, id); err != nil {
			return err
		}
		rev, err = r.db.Put(ctx, id, doc)
	}
	if err != nil {
		return fmt.Errorf("unable to save snapshot of case '%s': %w", snapshot.ID, err)
	}

	r.revs[id] = rev
	return nil
}

func (r *Repository) currentRev(ctx context.Context, id string) (string, error) {
	row := r.db.Get(ctx, id)
	doc := &snapshotDoc{}
	if err := row.ScanDoc(doc); err != nil {
		if kivik.StatusCode(err) == http.StatusNotFound {
			return "", nil
		}
		return "", err
	}
	return doc.Rev, nil
}

// Load returns the last snapshot of the case
func (r *Repository) Load(caseID string) (*state.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := r.context()
	defer cancel()

	id := snapshotID(caseID)
	doc := &snapshotDoc{}
	if err := r.db.Get(ctx, id).ScanDoc(doc); err != nil {
		if kivik.StatusCode(err) == http.StatusNotFound {
			return nil, state.ErrSnapshotNotFound
		}
		return nil, err
	}
	if doc.Snapshot == nil {
		return nil, errors.New("snapshot document of case '" + caseID + "' is empty")
	}

	r.revs[id] = doc.Rev
	return doc.Snapshot, nil
}

func (r *Repository) RecordStart(cs *state.CaseState) error {
	return r.putState(cs, "start")
}

func (r *Repository) RecordStep(step *state.Step) error {
	ctx, cancel := r.context()
	defer cancel()

	id := stepID(step.CaseID, step.ID)
	_, err := r.db.Put(ctx, id, &stepDoc{ID: id, Type: typeStep, Step: step})
	return err
}

func (r *Repository) RecordDone(cs *state.CaseState) error {
	return r.putState(cs, "done")
}

func (r *Repository) putState(cs *state.CaseState, suffix string) error {
	ctx, cancel := r.context()
	defer cancel()

	id := stateID(cs.CaseID, suffix)
	_, err := r.db.Put(ctx, id, &stateDoc{ID: id, Type: typeState, State: cs})
	return err
}

// Steps returns the recorded steps of a case ordered by step id
func (r *Repository) Steps(ctx context.Context, caseID string) ([]*state.Step, error) {

	rows, err := r.db.Find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{
			"type":        typeStep,
			"step.caseId": caseID,
		},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*state.Step
	for rows.Next() {
		doc := &stepDoc{}
		if err := rows.ScanDoc(doc); err != nil {
			return nil, err
		}
		steps = append(steps, doc.Step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].ID < steps[j].ID })
	return steps, nil
}
