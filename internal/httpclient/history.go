package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"
)

var historyBucket = []byte("requests")

// ErrNotFound is returned for an unknown history id.
var ErrNotFound = errors.New("request not found in history")

// ErrCredentialsNotKept is returned when replaying an entry whose secrets
// were recorded by an earlier process.
var ErrCredentialsNotKept = errors.New("request credentials are not kept across restarts; send it again with its auth")

// Redacted replaces secret values in stored entries.
const Redacted = "[redacted]"

var secretHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"X-Api-Key":           true,
}

// Redact returns a copy of r with credentials masked, and whether anything
// was masked.
func (r Request) Redact() (Request, bool) {
	out := r
	masked := false
	mask := func(s *string) {
		if *s != "" {
			*s = Redacted
			masked = true
		}
	}
	mask(&out.Auth.Password)
	mask(&out.Auth.Token)
	mask(&out.Auth.Value)

	if len(r.Headers) > 0 {
		out.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			if secretHeaders[http.CanonicalHeaderKey(k)] {
				mask(&v)
			}
			out.Headers[k] = v
		}
	}
	return out, masked
}

// Entry is one recorded request and its outcome.
type Entry struct {
	ID       string        `json:"id"`
	Time     time.Time     `json:"time"`
	Request  Request       `json:"request"`
	Status   int           `json:"status,omitempty"`
	Duration time.Duration `json:"duration"`
	Size     int64         `json:"size"`
	Error    string        `json:"error,omitempty"`
	ReplayOf string        `json:"replay_of,omitempty"`
	// Redacted is set when Request had credentials masked before storing.
	Redacted bool `json:"redacted,omitempty"`
}

// History is the bbolt-backed request log. Keys are ULIDs so cursor order is
// recording order. Credentials never reach the file; the unmasked requests
// of this process are held in memory so they can still be replayed.
type History struct {
	db    *bbolt.DB
	limit int

	mu      sync.Mutex
	secrets map[string]Request
}

// OpenHistory opens or creates the history file at path. limit caps the
// number of kept entries; zero keeps none.
func OpenHistory(path string, limit int) (*History, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create history bucket: %w", err)
	}
	return &History{db: db, limit: limit, secrets: make(map[string]Request)}, nil
}

// Close releases the file lock.
func (h *History) Close() error {
	return h.db.Close()
}

// Add assigns e an id, stores it with credentials masked and prunes the
// oldest entries over the limit. e itself is left unmasked.
func (h *History) Add(e *Entry) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if h.limit == 0 {
		return nil
	}

	stored := *e
	stored.Request, stored.Redacted = e.Request.Redact()
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	var pruned []string
	err = h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(historyBucket)
		if err := b.Put([]byte(e.ID), data); err != nil {
			return err
		}
		excess := count(b) - h.limit
		c := b.Cursor()
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			pruned = append(pruned, string(k))
			if err := b.Delete(k); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	if stored.Redacted {
		h.secrets[e.ID] = e.Request
	}
	for _, id := range pruned {
		delete(h.secrets, id)
	}
	h.mu.Unlock()
	return nil
}

// Original returns the request to send again for e. Masked entries resolve
// to the credentials held in memory, or fail with ErrCredentialsNotKept.
func (h *History) Original(e *Entry) (Request, error) {
	if !e.Redacted {
		return e.Request, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.secrets[e.ID]
	if !ok {
		return Request{}, fmt.Errorf("replay %s: %w", e.ID, ErrCredentialsNotKept)
	}
	return r, nil
}

// Get returns the entry with id.
func (h *History) Get(id string) (*Entry, error) {
	var e Entry
	err := h.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(historyBucket).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns up to limit entries, newest first.
func (h *History) List(limit int) ([]*Entry, error) {
	var out []*Entry
	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode history entry %s: %w", k, err)
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

// Clear removes every entry and reports how many there were.
func (h *History) Clear() (int, error) {
	var n int
	err := h.db.Update(func(tx *bbolt.Tx) error {
		n = count(tx.Bucket(historyBucket))
		if err := tx.DeleteBucket(historyBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(historyBucket)
		return err
	})
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	clear(h.secrets)
	h.mu.Unlock()
	return n, nil
}

func count(b *bbolt.Bucket) int {
	n := 0
	_ = b.ForEach(func(_, _ []byte) error {
		n++
		return nil
	})
	return n
}
