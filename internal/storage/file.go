package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "illo/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.interactions.jsonl   (append-only JSON Lines)
//   - <prefix>.state.snapshot.json  (periodic snapshot)
//   - <prefix>.state.journal.jsonl  (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	interactionsPath string
	interactionsFile *os.File

	stateSnapshotPath string
	stateJournalFile  *os.File
	state             map[string]json.RawMessage

	stateWrites int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	interactionsPath := prefix + ".interactions.jsonl"
	snapPath := prefix + ".state.snapshot.json"
	journalPath := prefix + ".state.journal.jsonl"

	inf, err := os.OpenFile(interactionsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	// Load state from snapshot + journal.
	state := map[string]json.RawMessage{}
	_ = loadStateSnapshot(snapPath, state)
	_ = replayStateJournal(journalPath, state)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = inf.Close()
		return nil, err
	}

	return &fileStore{
		log:               log,
		interactionsPath:  interactionsPath,
		interactionsFile:  inf,
		stateSnapshotPath: snapPath,
		stateJournalFile:  jf,
		state:             state,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err1, err2 error
	if s.interactionsFile != nil {
		err1 = s.interactionsFile.Close()
		s.interactionsFile = nil
	}
	if s.stateJournalFile != nil {
		err2 = s.stateJournalFile.Close()
		s.stateJournalFile = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (s *fileStore) AppendInteraction(ctx context.Context, e InteractionEvent) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interactionsFile == nil {
		return errors.New("interactions file closed")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.interactionsFile).Encode(e)
}

func (s *fileStore) PutState(ctx context.Context, key string, value json.RawMessage) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateJournalFile == nil {
		return errors.New("state journal closed")
	}
	if s.state == nil {
		s.state = map[string]json.RawMessage{}
	}
	s.state[key] = value

	// Append journal record.
	if err := json.NewEncoder(s.stateJournalFile).Encode(StateRecord{Key: key, Value: value}); err != nil {
		return err
	}
	s.stateWrites++
	if s.stateWrites%1000 == 0 {
		// Best-effort compact.
		if err := s.compactStateLocked(); err != nil {
			s.log.Debug("state compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) GetState(ctx context.Context, key string) (json.RawMessage, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (s *fileStore) Compact(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.compactStateLocked(); err != nil {
		return err
	}
	return s.trimInteractionsLocked(time.Now().Add(-interactionRetention))
}

func (s *fileStore) compactStateLocked() error {
	if s.state == nil || s.stateJournalFile == nil {
		return nil
	}
	tmp := s.stateSnapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.state); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.stateSnapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.stateJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.stateJournalFile.Seek(0, 2)
	return err
}

// trimInteractionsLocked rewrites the history file keeping only events at
// or after cutoff. Unparseable lines are dropped.
func (s *fileStore) trimInteractionsLocked(cutoff time.Time) error {
	if s.interactionsFile == nil {
		return nil
	}

	in, err := os.Open(s.interactionsPath)
	if err != nil {
		return err
	}

	tmp := s.interactionsPath + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		_ = in.Close()
		return err
	}

	sc := bufio.NewScanner(in)
	enc := json.NewEncoder(out)
	for sc.Scan() {
		var e InteractionEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		if e.At.Before(cutoff) {
			continue
		}
		if err := enc.Encode(e); err != nil {
			_ = in.Close()
			_ = out.Close()
			return err
		}
	}
	_ = in.Close()
	if err := sc.Err(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	// Swap files, then reopen the append handle.
	if err := s.interactionsFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.interactionsPath); err != nil {
		return err
	}
	f, err := os.OpenFile(s.interactionsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.interactionsFile = nil
		return err
	}
	s.interactionsFile = f
	return nil
}

func loadStateSnapshot(path string, out map[string]json.RawMessage) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]json.RawMessage
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayStateJournal(path string, out map[string]json.RawMessage) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		var r StateRecord
		if err := json.Unmarshal(s.Bytes(), &r); err != nil {
			continue
		}
		if r.Key == "" {
			continue
		}
		out[r.Key] = r.Value
	}
	return s.Err()
}
