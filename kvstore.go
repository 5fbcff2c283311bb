package elite

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/dgraph-io/badger/options"
	"go.uber.org/zap"
)

// Store keeps short-lived cooldown markers in badger. Entries carry a TTL so
// expired cooldowns vanish on their own.
type Store struct {
	db     *badger.DB
	logger *ZapLogger
}

func NewStore(path string, logger *ZapLogger) (*Store, error) {
	logger = logger.Named("kvstore").(*ZapLogger)
	badgerLogger := logger.Named("badger").(*ZapLogger)
	s := &Store{
		logger: logger,
	}

	opts := badger.DefaultOptions(path)
	opts.Truncate = true
	opts.ValueLogLoadingMode = options.FileIO
	opts.NumVersionsToKeep = 1
	opts.Logger = badgerLogger

	db, err := badger.Open(opts)
	if err != nil {
		s.logger.Error("failed to open badger", zap.Error(err))
		return nil, err
	}
	s.db = db

	go s.runGC()

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runGC() {
	gcTimer := time.NewTicker(time.Hour)
	for range gcTimer.C {
		err := s.db.RunValueLogGC(0.5)
		if err != nil && err != badger.ErrNoRewrite {
			s.logger.Error("failed to run gc", zap.Error(err))
		}
	}
}

func cooldownKey(kind, gid, uid string) []byte {
	return []byte(fmt.Sprintf("cooldown:%v:%v:%v", kind, gid, uid))
}

// Claim marks a cooldown if it is not already active. It returns true when
// the claim went through and false while the previous claim has not expired.
func (s *Store) Claim(kind, gid, uid string, ttl time.Duration) (bool, error) {
	claimed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(cooldownKey(kind, gid, uid))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		entry := badger.NewEntry(cooldownKey(kind, gid, uid), []byte{1}).WithTTL(ttl)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		s.logger.Error("failed to claim cooldown", zap.String("kind", kind), zap.Error(err))
		return false, err
	}
	return claimed, nil
}

// Touch refreshes a marker and reports whether it existed before. Used for
// the daily streak window: a claim inside the window continues the streak.
func (s *Store) Touch(kind, gid, uid string, ttl time.Duration) (bool, error) {
	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(cooldownKey(kind, gid, uid))
		if err == nil {
			existed = true
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		entry := badger.NewEntry(cooldownKey(kind, gid, uid), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		s.logger.Error("failed to touch cooldown", zap.String("kind", kind), zap.Error(err))
		return false, err
	}
	return existed, nil
}

// Remaining reports how long until an active cooldown expires. Zero means the
// cooldown is not active.
func (s *Store) Remaining(kind, gid, uid string) (time.Duration, error) {
	var remaining time.Duration
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cooldownKey(kind, gid, uid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		expires := time.Unix(int64(item.ExpiresAt()), 0)
		if d := time.Until(expires); d > 0 {
			remaining = d
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}
