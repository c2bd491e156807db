package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/tdex-network/xswapd/internal/core/domain"
	"github.com/tdex-network/xswapd/pkg/mathutil"
)

const (
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey is either "sim", for an in-process simulated pair of chains,
	// or "live".
	NetworkKey = "NETWORK"
	// HTTPListeningAddrKey is the address where the HTTP API listens on
	HTTPListeningAddrKey = "HTTP_ADDR"
	// ReadOnlyAPIKey disables swap initiation through the HTTP API
	ReadOnlyAPIKey = "READ_ONLY_API"
	// EnableProfilerKey periodically logs memory usage and dumps the default
	// prometheus metrics into the stats folder of the datadir on shutdown
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsIntervalKey is the interval in seconds between memory usage logs
	StatsIntervalKey = "STATS_INTERVAL"
	// DBTypeKey is the store for swaps and the vault key: badger or inmemory
	DBTypeKey = "DB_TYPE"
	// LedgerDBTypeKey is the store for the transaction ledger: badger, sqlite
	// or inmemory. Defaults to DB_TYPE
	LedgerDBTypeKey = "LEDGER_DB_TYPE"
	// VaultPasswordKey is the password encrypting the swap secrets at rest
	VaultPasswordKey = "VAULT_PASSWORD"

	SourceRPCURLKey            = "SOURCE_RPC_URL"
	SourceChainIDKey           = "SOURCE_CHAIN_ID"
	SourceEscrowContractKey    = "SOURCE_ESCROW_CONTRACT"
	SourceTokenKey             = "SOURCE_TOKEN"
	SourceTokenSymbolKey       = "SOURCE_TOKEN_SYMBOL"
	SourceTokenDecimalsKey     = "SOURCE_TOKEN_DECIMALS"
	DestinationRPCURLKey       = "DESTINATION_RPC_URL"
	DestinationChainIDKey      = "DESTINATION_CHAIN_ID"
	DestinationEscrowPkgKey    = "DESTINATION_ESCROW_PACKAGE"
	DestinationCoinTypeKey     = "DESTINATION_COIN_TYPE"
	DestinationCoinSymbolKey   = "DESTINATION_COIN_SYMBOL"
	DestinationCoinDecimalsKey = "DESTINATION_COIN_DECIMALS"
	// RPCRateLimitKey is the max number of requests per second sent to each
	// chain node
	RPCRateLimitKey = "RPC_RATE_LIMIT"
	// ReceiptTimeoutKey is how long to wait for a receipt before reporting a
	// transaction as pending
	ReceiptTimeoutKey = "RECEIPT_TIMEOUT"

	// WalletURLKey is the endpoint of the wallet provider signing transactions
	WalletURLKey   = "WALLET_URL"
	WalletTokenKey = "WALLET_TOKEN"

	// PriceOracleURLKey is the base url of the USD price oracle
	PriceOracleURLKey = "PRICE_ORACLE_URL"
	PriceCacheTTLKey  = "PRICE_CACHE_TTL"
	PriceCacheSizeKey = "PRICE_CACHE_SIZE"
	// RedisURLKey, if set, makes the price cache shared through redis
	RedisURLKey = "REDIS_URL"

	AuctionDurationKey        = "AUCTION_DURATION"
	AuctionStartPremiumBpsKey = "AUCTION_START_PREMIUM_BPS"
	AuctionEndDiscountBpsKey  = "AUCTION_END_DISCOUNT_BPS"

	SourceLockDurationKey     = "SOURCE_LOCK_DURATION"
	SafetyMarginKey           = "SAFETY_MARGIN"
	CompletionThresholdBpsKey = "COMPLETION_THRESHOLD_BPS"
	ReleasePolicyKey          = "RELEASE_POLICY"
	PollIntervalKey           = "POLL_INTERVAL"
	ChainCallTimeoutKey       = "CHAIN_CALL_TIMEOUT"

	// OrderBookURLKey is the url of the daemon whose order feed a standalone
	// resolver follows
	OrderBookURLKey               = "ORDER_BOOK_URL"
	ResolverNameKey               = "RESOLVER_NAME"
	ResolverMinMarginBpsKey       = "RESOLVER_MIN_MARGIN_BPS"
	ResolverMaxFillAmountKey      = "RESOLVER_MAX_FILL_AMOUNT"
	ResolverFillDeadlineBufferKey = "RESOLVER_FILL_DEADLINE_BUFFER"

	// SimResolversKey is the number of resolvers embedded in the daemon on
	// the sim network
	SimResolversKey           = "SIM_RESOLVERS"
	SimSourceUSDPriceKey      = "SIM_SOURCE_USD_PRICE"
	SimDestinationUSDPriceKey = "SIM_DESTINATION_USD_PRICE"
	SimMakerFundsKey          = "SIM_MAKER_FUNDS"
	SimResolverFundsKey       = "SIM_RESOLVER_FUNDS"
	// SimResolverPremiumBpsKey is added to the oracle rate to get the rate
	// at which embedded resolvers value the source asset
	SimResolverPremiumBpsKey = "SIM_RESOLVER_PREMIUM_BPS"

	NetworkSim  = "sim"
	NetworkLive = "live"

	DbLocation       = "db"
	SqliteLedgerDB   = "ledger.db"
	ProfilerLocation = "stats"

	StoreTypeBadger   = "badger"
	StoreTypeSqlite   = "sqlite"
	StoreTypeInmemory = "inmemory"
)

// Component is the binary loading the configuration.
type Component int

const (
	ComponentDaemon Component = iota
	ComponentResolver
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("xswapd", false)

func InitConfig(component Component) error {
	vip = viper.New()
	vip.SetEnvPrefix("XSWAP")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NetworkKey, NetworkLive)
	vip.SetDefault(HTTPListeningAddrKey, ":8080")
	vip.SetDefault(ReadOnlyAPIKey, false)
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsIntervalKey, 600)
	vip.SetDefault(DBTypeKey, StoreTypeBadger)
	vip.SetDefault(SourceChainIDKey, "1")
	vip.SetDefault(SourceTokenSymbolKey, "USDC")
	vip.SetDefault(SourceTokenDecimalsKey, 6)
	vip.SetDefault(DestinationChainIDKey, "sui:mainnet")
	vip.SetDefault(DestinationCoinTypeKey, "0x2::sui::SUI")
	vip.SetDefault(DestinationCoinSymbolKey, "SUI")
	vip.SetDefault(DestinationCoinDecimalsKey, 9)
	vip.SetDefault(RPCRateLimitKey, 10)
	vip.SetDefault(ReceiptTimeoutKey, 2*time.Minute)
	vip.SetDefault(PriceCacheTTLKey, 30*time.Second)
	vip.SetDefault(PriceCacheSizeKey, 128)
	vip.SetDefault(AuctionDurationKey, 3*time.Minute)
	vip.SetDefault(AuctionStartPremiumBpsKey, 100)
	vip.SetDefault(AuctionEndDiscountBpsKey, 50)
	vip.SetDefault(SourceLockDurationKey, time.Hour)
	vip.SetDefault(SafetyMarginKey, 10*time.Minute)
	vip.SetDefault(CompletionThresholdBpsKey, 0)
	vip.SetDefault(ReleasePolicyKey, string(domain.ReleaseOnFullCoverage))
	vip.SetDefault(PollIntervalKey, 2*time.Second)
	vip.SetDefault(ChainCallTimeoutKey, 30*time.Second)
	vip.SetDefault(ResolverNameKey, "resolver")
	vip.SetDefault(ResolverMinMarginBpsKey, 10)
	vip.SetDefault(ResolverFillDeadlineBufferKey, time.Minute)
	vip.SetDefault(SimResolversKey, 2)
	vip.SetDefault(SimSourceUSDPriceKey, "1")
	vip.SetDefault(SimDestinationUSDPriceKey, "0.5")
	vip.SetDefault(SimMakerFundsKey, "1000000000000")
	vip.SetDefault(SimResolverFundsKey, "1000000000000000000")
	vip.SetDefault(SimResolverPremiumBpsKey, 200)

	if err := validate(component); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetUint64(key string) uint64 {
	return vip.GetUint64(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func IsSimNetwork() bool {
	return GetString(NetworkKey) == NetworkSim
}

// GetLedgerDBType returns the ledger store type, the data store one if not set.
func GetLedgerDBType() string {
	if t := GetString(LedgerDBTypeKey); len(t) > 0 {
		return t
	}
	return GetString(DBTypeKey)
}

func GetSqliteLedgerPath() string {
	return filepath.Join(GetDatadir(), DbLocation, SqliteLedgerDB)
}

func GetSourceAsset() domain.Asset {
	return domain.Asset{
		Chain:    domain.ChainSource,
		ChainID:  GetString(SourceChainIDKey),
		Address:  GetString(SourceTokenKey),
		Symbol:   GetString(SourceTokenSymbolKey),
		Decimals: uint8(GetInt(SourceTokenDecimalsKey)),
	}
}

func GetDestinationAsset() domain.Asset {
	return domain.Asset{
		Chain:    domain.ChainDestination,
		ChainID:  GetString(DestinationChainIDKey),
		Address:  GetString(DestinationCoinTypeKey),
		Symbol:   GetString(DestinationCoinSymbolKey),
		Decimals: uint8(GetInt(DestinationCoinDecimalsKey)),
	}
}

// GetAmount returns the value of key as an integer amount, nil if not set.
func GetAmount(key string) (*big.Int, error) {
	s := GetString(key)
	if len(s) <= 0 {
		return nil, nil
	}
	amount, err := mathutil.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s", key, err)
	}
	return amount, nil
}

// GetDecimal returns the value of key as a decimal, zero if not parsable.
// Values are checked by InitConfig.
func GetDecimal(key string) decimal.Decimal {
	d, _ := decimal.NewFromString(GetString(key))
	return d
}

func validate(component Component) error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	network := GetString(NetworkKey)
	if network != NetworkSim && network != NetworkLive {
		return fmt.Errorf("%s must be either %s or %s", NetworkKey, NetworkSim, NetworkLive)
	}

	if err := validateDurations(); err != nil {
		return err
	}
	if GetBool(EnableProfilerKey) && GetInt(StatsIntervalKey) <= 0 {
		return fmt.Errorf("%s must be positive", StatsIntervalKey)
	}
	for _, key := range []string{
		AuctionStartPremiumBpsKey, AuctionEndDiscountBpsKey,
		CompletionThresholdBpsKey, ResolverMinMarginBpsKey,
	} {
		if GetInt(key) < 0 || GetInt(key) >= 10000 {
			return fmt.Errorf("%s must be in range [0, 10000)", key)
		}
	}
	if d := GetInt(SourceTokenDecimalsKey); d < 0 || d > 36 {
		return fmt.Errorf("%s must be in range [0, 36]", SourceTokenDecimalsKey)
	}
	if d := GetInt(DestinationCoinDecimalsKey); d < 0 || d > 36 {
		return fmt.Errorf("%s must be in range [0, 36]", DestinationCoinDecimalsKey)
	}
	if _, err := GetAmount(ResolverMaxFillAmountKey); err != nil {
		return err
	}

	switch component {
	case ComponentDaemon:
		if err := validateDaemon(); err != nil {
			return err
		}
	case ComponentResolver:
		if network == NetworkSim {
			return fmt.Errorf("resolver service cannot run on the %s network", NetworkSim)
		}
		if len(GetString(OrderBookURLKey)) <= 0 {
			return fmt.Errorf("missing order book url")
		}
	default:
		return fmt.Errorf("unknown component %d", component)
	}

	if network == NetworkSim {
		return validateSim()
	}
	return validateLive()
}

func validateDurations() error {
	margin := GetDuration(SafetyMarginKey)
	if margin <= 0 {
		return fmt.Errorf("%s must be positive", SafetyMarginKey)
	}
	if GetDuration(SourceLockDurationKey) <= margin {
		return fmt.Errorf("%s must exceed %s", SourceLockDurationKey, SafetyMarginKey)
	}
	for _, key := range []string{
		AuctionDurationKey, PollIntervalKey, ChainCallTimeoutKey,
		PriceCacheTTLKey, ReceiptTimeoutKey,
	} {
		if GetDuration(key) <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if GetDuration(ResolverFillDeadlineBufferKey) < 0 {
		return fmt.Errorf("%s must not be negative", ResolverFillDeadlineBufferKey)
	}
	return nil
}

func validateDaemon() error {
	if len(GetString(VaultPasswordKey)) <= 0 {
		return fmt.Errorf("missing vault password")
	}
	if len(GetString(HTTPListeningAddrKey)) <= 0 {
		return fmt.Errorf("missing http listening address")
	}

	dbType := GetString(DBTypeKey)
	if dbType != StoreTypeBadger && dbType != StoreTypeInmemory {
		return fmt.Errorf(
			"%s must be either %s or %s", DBTypeKey, StoreTypeBadger, StoreTypeInmemory,
		)
	}
	switch GetLedgerDBType() {
	case StoreTypeBadger, StoreTypeSqlite, StoreTypeInmemory:
	default:
		return fmt.Errorf(
			"%s must be one of %s", LedgerDBTypeKey,
			strings.Join([]string{StoreTypeBadger, StoreTypeSqlite, StoreTypeInmemory}, ", "),
		)
	}

	if !domain.ReleasePolicy(GetString(ReleasePolicyKey)).IsValid() {
		return fmt.Errorf("invalid %s %q", ReleasePolicyKey, GetString(ReleasePolicyKey))
	}
	return nil
}

func validateSim() error {
	for _, key := range []string{SimSourceUSDPriceKey, SimDestinationUSDPriceKey} {
		price, err := decimal.NewFromString(GetString(key))
		if err != nil || !price.IsPositive() {
			return fmt.Errorf("%s must be a positive number", key)
		}
	}
	for _, key := range []string{SimMakerFundsKey, SimResolverFundsKey} {
		amount, err := GetAmount(key)
		if err != nil {
			return err
		}
		if amount == nil {
			return fmt.Errorf("missing %s", key)
		}
	}
	if GetInt(SimResolversKey) < 0 {
		return fmt.Errorf("%s must not be negative", SimResolversKey)
	}
	return nil
}

// validateLive fails if any endpoint or contract required to reach the real
// chains is missing. There are no fallbacks.
func validateLive() error {
	required := []string{
		SourceRPCURLKey, SourceEscrowContractKey,
		DestinationRPCURLKey, DestinationEscrowPkgKey,
		WalletURLKey, PriceOracleURLKey,
	}
	for _, key := range required {
		if len(GetString(key)) <= 0 {
			return fmt.Errorf("missing %s", key)
		}
	}
	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}
	if GetBool(EnableProfilerKey) {
		return makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation))
	}
	return nil
}

// GetProfilerDir returns the folder where stats are dumped, empty if the
// profiler is disabled.
func GetProfilerDir() string {
	if !GetBool(EnableProfilerKey) {
		return ""
	}
	return filepath.Join(GetDatadir(), ProfilerLocation)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
