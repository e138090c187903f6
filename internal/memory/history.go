package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
)

const (
	writeQueueSize     = 1000
	writeFlushInterval = 5 * time.Second
	writeTimeout       = 10 * time.Second

	historyFileName = "decisions.jsonl"
	filePermissions = 0o644
)

// writeOperation represents a pending history write.
type writeOperation struct {
	record  *DecisionRecord
	errChan chan error
}

// HistoryStore manages persistent storage of routing decisions in JSONL format.
// It uses an async write queue with buffered channels to keep the hot path
// non-blocking, and rotates (optionally gzipping) the active file once it
// exceeds the configured size.
type HistoryStore struct {
	baseDir      string
	maxSizeBytes int64
	compress     bool

	writeQueue chan *writeOperation
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
	file       *os.File
}

// NewHistoryStore creates a history store rooted at baseDir and starts the
// background writer.
func NewHistoryStore(baseDir string, maxSizeMB int, compress bool) (*HistoryStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := &HistoryStore{
		baseDir:      baseDir,
		maxSizeBytes: int64(maxSizeMB) * 1024 * 1024,
		compress:     compress,
		writeQueue:   make(chan *writeOperation, writeQueueSize),
		ctx:          ctx,
		cancel:       cancel,
	}

	file, err := os.OpenFile(store.activePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermissions)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	store.file = file

	store.wg.Add(1)
	go store.writeWorker()

	return store, nil
}

func (hs *HistoryStore) activePath() string {
	return filepath.Join(hs.baseDir, historyFileName)
}

// Record appends a decision record to the history.
// This method is non-blocking and returns immediately after queuing the write.
// If the write queue is full, it returns an error without blocking.
func (hs *HistoryStore) Record(record *DecisionRecord) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.QueryID == "" {
		return fmt.Errorf("record is missing a query id")
	}

	op := &writeOperation{
		record:  record,
		errChan: make(chan error, 1),
	}

	select {
	case hs.writeQueue <- op:
		select {
		case err := <-op.errChan:
			return err
		case <-time.After(writeTimeout):
			return fmt.Errorf("history write timed out")
		case <-hs.ctx.Done():
			return fmt.Errorf("history store is shutting down")
		}
	default:
		return fmt.Errorf("history write queue is full, dropping record (queue size: %d)", writeQueueSize)
	}
}

// Recent returns up to limit records, most recent first.
func (hs *HistoryStore) Recent(limit int) ([]*DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	hs.mu.RLock()
	path := hs.activePath()
	hs.mu.RUnlock()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*DecisionRecord{}, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var records []*DecisionRecord
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec DecisionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Skip malformed lines rather than failing the whole read.
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading history: %w", err)
	}

	result := make([]*DecisionRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, records[i])
	}
	return result, nil
}

// Count returns the number of records in the active history file.
func (hs *HistoryStore) Count() (int, error) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	file, err := os.Open(hs.activePath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error counting history: %w", err)
	}
	return count, nil
}

// writeWorker is the background goroutine that processes write operations.
func (hs *HistoryStore) writeWorker() {
	defer hs.wg.Done()

	ticker := time.NewTicker(writeFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case op := <-hs.writeQueue:
			err := hs.writeRecord(op.record)
			select {
			case op.errChan <- err:
			default:
			}
		case <-ticker.C:
			hs.flush()
			hs.rotateIfNeeded()
		case <-hs.ctx.Done():
			hs.drainQueue()
			return
		}
	}
}

func (hs *HistoryStore) writeRecord(record *DecisionRecord) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal decision record: %w", err)
	}
	data = append(data, '\n')

	if _, err := hs.file.Write(data); err != nil {
		return fmt.Errorf("failed to write decision record: %w", err)
	}
	return nil
}

func (hs *HistoryStore) flush() {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.file != nil {
		_ = hs.file.Sync()
	}
}

// rotateIfNeeded archives the active file once it exceeds the size bound.
// Archives are named decisions-<unix-nanos>.jsonl[.gz].
func (hs *HistoryStore) rotateIfNeeded() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.file == nil {
		return
	}
	info, err := hs.file.Stat()
	if err != nil || info.Size() < hs.maxSizeBytes {
		return
	}

	archive := filepath.Join(hs.baseDir, fmt.Sprintf("decisions-%d.jsonl", time.Now().UnixNano()))
	_ = hs.file.Close()
	hs.file = nil

	if err := os.Rename(hs.activePath(), archive); err != nil {
		log.Errorf("history rotation failed: %v", err)
	} else if hs.compress {
		if err := gzipFile(archive); err != nil {
			log.Errorf("history archive compression failed: %v", err)
		}
	}

	file, err := os.OpenFile(hs.activePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermissions)
	if err != nil {
		log.Errorf("failed to reopen history file after rotation: %v", err)
		return
	}
	hs.file = file
}

// gzipFile compresses path to path.gz and removes the original.
func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		_ = gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

func (hs *HistoryStore) drainQueue() {
	for {
		select {
		case op := <-hs.writeQueue:
			err := hs.writeRecord(op.record)
			select {
			case op.errChan <- err:
			default:
			}
		default:
			hs.flush()
			return
		}
	}
}

// Close gracefully shuts down the history store, draining pending writes.
func (hs *HistoryStore) Close() error {
	hs.cancel()
	hs.wg.Wait()

	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.file != nil {
		if err := hs.file.Close(); err != nil {
			return fmt.Errorf("failed to close history file: %w", err)
		}
		hs.file = nil
	}
	return nil
}
