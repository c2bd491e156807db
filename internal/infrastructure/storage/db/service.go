package db

import (
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/internal/core/ports"
	dbbadger "github.com/tdex-network/xswapd/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/xswapd/internal/infrastructure/storage/db/inmemory"
	sqlitedb "github.com/tdex-network/xswapd/internal/infrastructure/storage/db/sqlite"
)

const (
	StoreTypeBadger   = "badger"
	StoreTypeSqlite   = "sqlite"
	StoreTypeInmemory = "inmemory"
)

var (
	dataStoreTypes = map[string]func(ServiceConfig) (ports.RepoManager, error){
		StoreTypeBadger: func(c ServiceConfig) (ports.RepoManager, error) {
			return dbbadger.NewRepoManager(c.Datadir, c.BadgerLogger)
		},
		StoreTypeInmemory: func(ServiceConfig) (ports.RepoManager, error) {
			return inmemory.NewRepoManager(), nil
		},
	}
	ledgerStoreTypes = map[string]func(ServiceConfig) (domain.TxRecordRepository, error){
		StoreTypeBadger: func(c ServiceConfig) (domain.TxRecordRepository, error) {
			return dbbadger.NewTxRecordRepository(c.Datadir, c.BadgerLogger)
		},
		StoreTypeSqlite: func(c ServiceConfig) (domain.TxRecordRepository, error) {
			return sqlitedb.NewTxRecordRepository(c.SqlitePath)
		},
		StoreTypeInmemory: func(ServiceConfig) (domain.TxRecordRepository, error) {
			return inmemory.NewTxRecordRepositoryImpl(), nil
		},
	}
)

type ServiceConfig struct {
	// DataStoreType selects where swaps and the vault key are stored.
	DataStoreType string
	// LedgerStoreType selects where the transaction ledger is stored. When
	// empty, or equal to DataStoreType, the data store keeps the ledger too.
	LedgerStoreType string

	Datadir      string
	SqlitePath   string
	BadgerLogger badger.Logger
}

type service struct {
	ports.RepoManager
	txRecordRepository domain.TxRecordRepository
}

// NewService returns the RepoManager for the given store types.
func NewService(config ServiceConfig) (ports.RepoManager, error) {
	dataStoreFactory, ok := dataStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	repoManager, err := dataStoreFactory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create data store: %w", err)
	}

	if config.LedgerStoreType == "" || config.LedgerStoreType == config.DataStoreType {
		return repoManager, nil
	}

	ledgerStoreFactory, ok := ledgerStoreTypes[config.LedgerStoreType]
	if !ok {
		repoManager.Close()
		return nil, fmt.Errorf("invalid ledger store type: %s", config.LedgerStoreType)
	}
	if config.LedgerStoreType == StoreTypeSqlite && config.SqlitePath == "" {
		repoManager.Close()
		return nil, fmt.Errorf("missing sqlite db path")
	}

	txRecordRepository, err := ledgerStoreFactory(config)
	if err != nil {
		repoManager.Close()
		return nil, fmt.Errorf("failed to create ledger store: %w", err)
	}

	return &service{repoManager, txRecordRepository}, nil
}

func (s *service) TxRecordRepository() domain.TxRecordRepository {
	return s.txRecordRepository
}

func (s *service) Close() {
	s.RepoManager.Close()
	if closer, ok := s.txRecordRepository.(interface{ Close() }); ok {
		closer.Close()
	}
}
