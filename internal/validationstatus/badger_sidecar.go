package validationstatus

import (
	"encoding/binary"
	"fmt"

	"github.com/tobysharp/timechain/internal/storage"
)

// BadgerSidecar persists validation status per height in a storage.DB
// (normally a *storage.BadgerDB), so a restarted node doesn't have to
// revalidate blocks it already finished checking. Keys are big-endian so a
// prefix scan visits heights in ascending order, matching FirstUnvalidated's
// scan direction.
type BadgerSidecar struct {
	db storage.DB
}

// NewBadgerSidecar wraps db as a Sidecar. db is not owned by the sidecar and
// must be closed by the caller.
func NewBadgerSidecar(db storage.DB) *BadgerSidecar {
	return &BadgerSidecar{db: db}
}

func sidecarKey(height int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(height))
	return key
}

func (s *BadgerSidecar) Get(height int64) Status {
	val, err := s.db.Get(sidecarKey(height))
	if err != nil || len(val) == 0 {
		return Unvalidated
	}
	return Status(val[0])
}

func (s *BadgerSidecar) Set(height int64, status Status) {
	if err := s.db.Put(sidecarKey(height), []byte{byte(status)}); err != nil {
		panic(fmt.Sprintf("validationstatus: badger sidecar: put height %d: %v", height, err))
	}
}

func (s *BadgerSidecar) FirstUnvalidated(from, limit int64) (int64, bool) {
	for h := from; h < from+limit; h++ {
		if s.Get(h) == Unvalidated {
			return h, true
		}
	}
	return 0, false
}
