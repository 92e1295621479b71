package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names
const (
	EnvDLTPrivateKey  = "DLT_PRIVATE_KEY"
	EnvDLTGasProvided = "DLT_GAS_PROVIDED"

	EnvContractInfo  = "TWINBASE_CONTRACT_INFO"
	EnvTreeFile      = "TWINBASE_TREE_FILE"
	EnvDocsDir       = "TWINBASE_DOCS_DIR"
	EnvSignerType    = "TWINBASE_SIGNER_TYPE"
	EnvRootTarget    = "TWINBASE_ROOT_TARGET"
	EnvArchiveType   = "TWINBASE_ARCHIVE_TYPE"
	EnvArchivePath   = "TWINBASE_ARCHIVE_PATH"
	EnvRedisAddress  = "TWINBASE_REDIS_ADDRESS"
	EnvRedisPassword = "TWINBASE_REDIS_PASSWORD"
	EnvRedisDB       = "TWINBASE_REDIS_DB"
	EnvVerbose       = "TWINBASE_VERBOSE"
	EnvPort          = "TWINBASE_PORT"
	EnvTimeout       = "TWINBASE_TIMEOUT"
	EnvDryRun        = "TWINBASE_DRY_RUN"
	EnvSortLeaves    = "TWINBASE_SORT_LEAVES"
	EnvTreeSource    = "TWINBASE_TREE_SOURCE"
	EnvRateLimit     = "TWINBASE_RATE_LIMIT"
	EnvRateBurst     = "TWINBASE_RATE_BURST"
	EnvDocumentHosts = "TWINBASE_DOCUMENT_HOSTS"

	EnvWeb3SignerUrl    = "TWINBASE_WEB3SIGNER_URL"
	EnvWeb3SignerCACert = "TWINBASE_WEB3SIGNER_CA_CERT"
	EnvWeb3SignerCert   = "TWINBASE_WEB3SIGNER_CERT"
	EnvWeb3SignerKey    = "TWINBASE_WEB3SIGNER_KEY"
	EnvSignerAddress    = "TWINBASE_SIGNER_ADDRESS"
	EnvAWSKMSKeyId      = "TWINBASE_AWS_KMS_KEY_ID"
	EnvAWSRegion        = "TWINBASE_AWS_REGION"
)

// Default locations, relative to the repository root
const (
	DefaultContractInfoFile = "./docs/static/contract/contract-info.json"
	DefaultTreeFile         = "./docs/static/contract/tree.json"
	DefaultDocsDir          = "./docs"
	DefaultTwinDocument     = "./index.json"
	DefaultPort             = 8000
	DefaultGasProvided      = 3000000
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_Ganache         ChainId = 1337
	ChainId_EthereumAnvil   ChainId = 31337
)

// IsEthereum reports whether the chain is an Ethereum L1 network (mainnet or sepolia)
func IsEthereum(chainId ChainId) bool {
	return chainId == ChainId_EthereumMainnet || chainId == ChainId_EthereumSepolia
}

type SignerType string

const (
	SignerTypePrivateKey SignerType = "private-key"
	SignerTypeWeb3Signer SignerType = "web3signer"
	SignerTypeAWSKMS     SignerType = "aws-kms"
)

type ArchiveType string

const (
	ArchiveTypeNone    ArchiveType = "none"
	ArchiveTypeMemory  ArchiveType = "memory"
	ArchiveTypeBadger  ArchiveType = "badger"
	ArchiveTypeRedis   ArchiveType = "redis"
	ArchiveTypeLevelDB ArchiveType = "leveldb"
)

// RemoteSignerConfig configures a Web3Signer endpoint
type RemoteSignerConfig struct {
	Url         string `json:"url" yaml:"url"`
	CACert      string `json:"caCert" yaml:"caCert"`
	Cert        string `json:"cert" yaml:"cert"`
	Key         string `json:"key" yaml:"key"`
	FromAddress string `json:"fromAddress" yaml:"fromAddress"`
}

func (rsc *RemoteSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if rsc.Url == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("url"), "url is required"))
	}
	if rsc.FromAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("fromAddress"), "fromAddress is required"))
	} else if !common.IsHexAddress(rsc.FromAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("fromAddress"), rsc.FromAddress, "must be a hex address"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// AWSKMSSignerConfig selects a secp256k1 key held in AWS KMS
type AWSKMSSignerConfig struct {
	KeyId  string `json:"keyId" yaml:"keyId"`
	Region string `json:"region" yaml:"region"`
}

func (c *AWSKMSSignerConfig) Validate() error {
	var allErrors field.ErrorList
	if c.KeyId == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("keyId"), "keyId is required"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// SignerConfig selects how transactions are signed
type SignerConfig struct {
	Type         SignerType          `json:"type" yaml:"type"`
	PrivateKey   string              `json:"-" yaml:"-"`
	RemoteSigner *RemoteSignerConfig `json:"remoteSigner,omitempty" yaml:"remoteSigner,omitempty"`
	AWSKMS       *AWSKMSSignerConfig `json:"awsKms,omitempty" yaml:"awsKms,omitempty"`
}

func (sc *SignerConfig) Validate() error {
	var allErrors field.ErrorList
	path := field.NewPath("signer")

	switch sc.Type {
	case SignerTypePrivateKey, "":
		if sc.PrivateKey == "" {
			allErrors = append(allErrors, field.Required(path.Child("privateKey"), fmt.Sprintf("%s must be set", EnvDLTPrivateKey)))
		} else if err := ValidatePrivateKeyHex(sc.PrivateKey); err != nil {
			allErrors = append(allErrors, field.Invalid(path.Child("privateKey"), "<redacted>", err.Error()))
		}
	case SignerTypeWeb3Signer:
		if sc.RemoteSigner == nil {
			allErrors = append(allErrors, field.Required(path.Child("remoteSigner"), "remote signer config is required"))
		} else if err := sc.RemoteSigner.Validate(); err != nil {
			allErrors = append(allErrors, field.Invalid(path.Child("remoteSigner"), sc.RemoteSigner.Url, err.Error()))
		}
	case SignerTypeAWSKMS:
		if sc.AWSKMS == nil {
			allErrors = append(allErrors, field.Required(path.Child("awsKms"), "aws kms config is required"))
		} else if err := sc.AWSKMS.Validate(); err != nil {
			allErrors = append(allErrors, field.Invalid(path.Child("awsKms"), sc.AWSKMS.KeyId, err.Error()))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), sc.Type,
			[]string{string(SignerTypePrivateKey), string(SignerTypeWeb3Signer), string(SignerTypeAWSKMS)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ValidatePrivateKeyHex checks that key is 32 bytes of hex, with or without 0x
func ValidatePrivateKeyHex(key string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
	if len(key) != 64 {
		return fmt.Errorf("private key must be 32 bytes (64 hex chars), got %d chars", len(key))
	}
	for _, c := range key {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return fmt.Errorf("private key contains non-hex character %q", c)
		}
	}
	return nil
}

// ArchiveConfig selects the optional build archive backend
type ArchiveConfig struct {
	Type          ArchiveType `json:"type" yaml:"type"`
	Path          string      `json:"path" yaml:"path"`
	RedisAddress  string      `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword string      `json:"-" yaml:"-"`
	RedisDB       int         `json:"redisDb" yaml:"redisDb"`
}

// Persistent reports whether builds outlive the process
func (ac *ArchiveConfig) Persistent() bool {
	switch ac.Type {
	case ArchiveTypeBadger, ArchiveTypeLevelDB, ArchiveTypeRedis:
		return true
	}
	return false
}

func (ac *ArchiveConfig) Validate() error {
	var allErrors field.ErrorList
	path := field.NewPath("archive")

	switch ac.Type {
	case ArchiveTypeNone, ArchiveTypeMemory, "":
	case ArchiveTypeBadger, ArchiveTypeLevelDB:
		if ac.Path == "" {
			allErrors = append(allErrors, field.Required(path.Child("path"), "path is required for disk-backed archives"))
		}
	case ArchiveTypeRedis:
		if ac.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redis address is required"))
		}
		if ac.RedisDB < 0 || ac.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDb"), ac.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), ac.Type, []string{
			string(ArchiveTypeNone), string(ArchiveTypeMemory), string(ArchiveTypeBadger),
			string(ArchiveTypeRedis), string(ArchiveTypeLevelDB),
		}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// BuilderConfig configures a tree builder run
type BuilderConfig struct {
	ContractInfo string `json:"contractInfo"`
	TreeFile     string `json:"treeFile"`

	// RootTarget names the contract that receives setRootHash
	RootTarget string `json:"rootTarget"`
	SortLeaves bool   `json:"sortLeaves"`
	DryRun     bool   `json:"dryRun"`

	Timeout time.Duration `json:"timeout"`
	Signer  SignerConfig  `json:"signer"`
	Archive ArchiveConfig `json:"archive"`

	Debug bool `json:"debug"`
}

func (c *BuilderConfig) Validate() error {
	var allErrors field.ErrorList
	if c.ContractInfo == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("contractInfo"), "contract info location is required"))
	}
	if c.TreeFile == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("treeFile"), "tree file path is required"))
	}
	if c.RootTarget != TwinRegistryName && c.RootTarget != RootHashRegistryName {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("rootTarget"), c.RootTarget,
			[]string{TwinRegistryName, RootHashRegistryName}))
	}
	if c.Timeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("timeout"), c.Timeout.String(), "must be positive"))
	}
	if !c.DryRun {
		if err := c.Signer.Validate(); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("signer"), string(c.Signer.Type), err.Error()))
		}
	}
	if err := c.Archive.Validate(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("archive"), string(c.Archive.Type), err.Error()))
	}
	// The builder exits after one run, so a memory archive would drop the build
	if c.Archive.Type == ArchiveTypeMemory {
		allErrors = append(allErrors, field.Invalid(field.NewPath("archive").Child("type"), string(c.Archive.Type),
			"memory archive does not outlive a builder run"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// VerifierConfig configures the verify command and the verifier service
type VerifierConfig struct {
	ContractInfo string        `json:"contractInfo"`
	TreeSource   string        `json:"treeSource"`
	DocsDir      string        `json:"docsDir"`
	Port         int           `json:"port"`
	Timeout      time.Duration `json:"timeout"`

	// RequestsPerSecond bounds the API request rate; Burst is the bucket size
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	Burst             int     `json:"burst"`

	// DocumentHosts restricts the hosts /api/validate may fetch from; empty allows any
	DocumentHosts []string `json:"documentHosts"`

	// TreeFromArchive serves the latest archived build instead of TreeSource
	TreeFromArchive bool          `json:"treeFromArchive"`
	Archive         ArchiveConfig `json:"archive"`

	Debug bool `json:"debug"`
}

func (c *VerifierConfig) Validate() error {
	var allErrors field.ErrorList
	if c.ContractInfo == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("contractInfo"), "contract info location is required"))
	}
	if c.TreeSource == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("treeSource"), "tree source is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}
	if c.Timeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("timeout"), c.Timeout.String(), "must be positive"))
	}
	if c.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), c.RequestsPerSecond, "must not be negative"))
	}
	if c.TreeFromArchive {
		if err := c.Archive.Validate(); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("archive"), string(c.Archive.Type), err.Error()))
		} else if !c.Archive.Persistent() {
			allErrors = append(allErrors, field.Invalid(field.NewPath("archive").Child("type"), string(c.Archive.Type),
				"reading trees from the archive needs a persistent archive"))
		}
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// PublisherConfig configures the twin hash publisher
type PublisherConfig struct {
	ContractInfo string        `json:"contractInfo"`
	DocsDir      string        `json:"docsDir"`
	GasProvided  uint64        `json:"gasProvided"`
	Timeout      time.Duration `json:"timeout"`
	Signer       SignerConfig  `json:"signer"`
	Debug        bool          `json:"debug"`
}

func (c *PublisherConfig) Validate() error {
	var allErrors field.ErrorList
	if c.ContractInfo == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("contractInfo"), "contract info location is required"))
	}
	if c.DocsDir == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("docsDir"), "docs directory is required"))
	}
	if c.GasProvided == 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("gasProvided"), c.GasProvided, "must be positive"))
	}
	if c.Timeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("timeout"), c.Timeout.String(), "must be positive"))
	}
	if err := c.Signer.Validate(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("signer"), string(c.Signer.Type), err.Error()))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
