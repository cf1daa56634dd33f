package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrChainBroken = errors.New("audit chain broken")

// Entry is one write recorded by the sync service. Hash covers the previous
// entry's hash and every other field, so editing or dropping a record
// breaks the chain from that point on.
type Entry struct {
	Seq    uint64 `json:"seq"`
	TS     int64  `json:"ts"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	ID     string `json:"id"`
	Hash   string `json:"hash"`
}

// Log is an in-memory hash chain, safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	lastHash []byte
	entries  []Entry
	now      func() time.Time
}

func New() *Log { return &Log{now: time.Now} }

func (l *Log) Append(actor, action, id string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{
		Seq:    uint64(len(l.entries)) + 1,
		TS:     l.now().Unix(),
		Actor:  actor,
		Action: action,
		ID:     id,
	}
	sum := chainHash(l.lastHash, e)
	l.lastHash = sum
	e.Hash = hex.EncodeToString(sum)
	l.entries = append(l.entries, e)
	return e
}

func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Verify(l.entries)
}

// Verify checks a chain exported by Entries.
func Verify(entries []Entry) error {
	var prev []byte
	for i, e := range entries {
		sum := chainHash(prev, e)
		if hex.EncodeToString(sum) != e.Hash {
			return errors.Wrapf(ErrChainBroken, "at entry %d", i+1)
		}
		prev = sum
	}
	return nil
}

func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// chainHash length-prefixes each field so ("ab","c") and ("a","bc") differ.
func chainHash(prev []byte, e Entry) []byte {
	h := sha256.New()
	h.Write(prev)
	for _, f := range []string{
		strconv.FormatUint(e.Seq, 10),
		strconv.FormatInt(e.TS, 10),
		e.Actor,
		e.Action,
		e.ID,
	} {
		h.Write([]byte(strconv.Itoa(len(f))))
		h.Write([]byte{':'})
		h.Write([]byte(f))
	}
	return h.Sum(nil)
}
