package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const (
	swapStoreDir   = "swaps"
	ledgerStoreDir = "ledger"
)

type repoManager struct {
	store       *badgerhold.Store
	ledgerStore *badgerhold.Store

	swapRepository     domain.SwapRepository
	txRecordRepository domain.TxRecordRepository
	vaultRepository    domain.VaultRepository
}

// NewRepoManager opens (or creates if not exists) the badger stores on disk
// under baseDbDir. An empty baseDbDir opens in-memory stores.
func NewRepoManager(baseDbDir string, logger badger.Logger) (ports.RepoManager, error) {
	var swapDir, ledgerDir string
	if len(baseDbDir) > 0 {
		swapDir = filepath.Join(baseDbDir, swapStoreDir)
		ledgerDir = filepath.Join(baseDbDir, ledgerStoreDir)
	}

	store, err := createDb(swapDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening swap db: %w", err)
	}

	ledgerStore, err := createDb(ledgerDir, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}

	return &repoManager{
		store:              store,
		ledgerStore:        ledgerStore,
		swapRepository:     newSwapRepository(store),
		txRecordRepository: newTxRecordRepository(ledgerStore),
		vaultRepository:    newVaultRepository(store),
	}, nil
}

// NewTxRecordRepository opens a standalone ledger store, used when swaps are
// kept elsewhere.
func NewTxRecordRepository(baseDbDir string, logger badger.Logger) (domain.TxRecordRepository, error) {
	var dir string
	if len(baseDbDir) > 0 {
		dir = filepath.Join(baseDbDir, ledgerStoreDir)
	}
	store, err := createDb(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	return newTxRecordRepository(store), nil
}

func (m *repoManager) SwapRepository() domain.SwapRepository {
	return m.swapRepository
}

func (m *repoManager) TxRecordRepository() domain.TxRecordRepository {
	return m.txRecordRepository
}

func (m *repoManager) VaultRepository() domain.VaultRepository {
	return m.vaultRepository
}

func (m *repoManager) Close() {
	m.store.Close()
	m.ledgerStore.Close()
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)
	if err := en.Encode(value); err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					log.Error(err)
				}
			}
		}()
	}

	return db, nil
}
