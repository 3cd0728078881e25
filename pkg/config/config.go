package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// FBUPLOAD_TRANSFER_STRATEGY=resumable.
const EnvPrefix = "FBUPLOAD"

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultRemoteDir is the upload directory when none is given.
	DefaultRemoteDir = "/"

	// DefaultAuthHeader is the header FileBrowser reads the token from.
	DefaultAuthHeader = "X-Auth"

	// DefaultTimeout bounds every single HTTP exchange.
	DefaultTimeout = 5 * time.Minute

	// DefaultCurlPath is the curl binary looked up in PATH.
	DefaultCurlPath = "curl"

	// DefaultMultipartField is the form field carrying the file.
	DefaultMultipartField = "file"

	// DefaultStatusMarker labels the status code in transport output.
	DefaultStatusMarker = "HTTP_STATUS:"

	// DefaultEnvCredentialPrefix prefixes credential environment variables.
	DefaultEnvCredentialPrefix = "FBUPLOAD_CREDENTIAL"
)

// Token formats returned by the login endpoint.
const (
	TokenFormatRaw  = "raw"
	TokenFormatJSON = "json"
)

// Transfer strategies.
const (
	StrategyDirect    = "direct"
	StrategyResumable = "resumable"
)

// Direct transfer body encodings.
const (
	EncodingBinary    = "binary"
	EncodingMultipart = "multipart"
)

// Transport kinds.
const (
	TransportHTTP = "http"
	TransportCurl = "curl"
)

// Credential providers. In-memory credentials (credential.NewStatic) are
// for embedding only and cannot be selected here.
const (
	ProviderFile = "file"
	ProviderEnv  = "env"
	ProviderAWS  = "aws"
)

// Config is the root configuration for fbupload.
type Config struct {
	Global      GlobalConfig      `yaml:"global" mapstructure:"global"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Transfer    TransferConfig    `yaml:"transfer" mapstructure:"transfer"`
	Transport   TransportConfig   `yaml:"transport" mapstructure:"transport"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// ServerConfig describes the FileBrowser deployment and its flavor.
type ServerConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
	// TokenFormat is "raw" when login returns the bare token and "json"
	// when it returns {"token": "..."}.
	TokenFormat string `yaml:"token_format" mapstructure:"token_format"`
	AuthHeader  string `yaml:"auth_header" mapstructure:"auth_header"`
	// AuthScheme prefixes the token in the header value, e.g. "Bearer".
	AuthScheme string `yaml:"auth_scheme,omitempty" mapstructure:"auth_scheme"`
}

// TransferConfig selects the upload protocol for a deployment.
type TransferConfig struct {
	Strategy  string               `yaml:"strategy" mapstructure:"strategy"`
	RemoteDir string               `yaml:"remote_dir" mapstructure:"remote_dir"`
	Direct    DirectTransferConfig `yaml:"direct" mapstructure:"direct"`
}

// DirectTransferConfig configures the single request upload.
type DirectTransferConfig struct {
	Method         string `yaml:"method" mapstructure:"method"`
	Encoding       string `yaml:"encoding" mapstructure:"encoding"`
	MultipartField string `yaml:"multipart_field,omitempty" mapstructure:"multipart_field"`
}

// TransportConfig configures how HTTP requests are executed.
type TransportConfig struct {
	Kind               string        `yaml:"kind" mapstructure:"kind"`
	CurlPath           string        `yaml:"curl_path,omitempty" mapstructure:"curl_path"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
	Verbose            bool          `yaml:"verbose" mapstructure:"verbose"`
	StatusConvention   string        `yaml:"status_convention" mapstructure:"status_convention"`
	StatusMarker       string        `yaml:"status_marker,omitempty" mapstructure:"status_marker"`
}

// CredentialsConfig selects the secret store credentials are resolved from.
type CredentialsConfig struct {
	Provider string                `yaml:"provider" mapstructure:"provider"`
	File     FileCredentialsConfig `yaml:"file,omitempty" mapstructure:"file"`
	Env      EnvCredentialsConfig  `yaml:"env,omitempty" mapstructure:"env"`
	AWS      AWSCredentialsConfig  `yaml:"aws,omitempty" mapstructure:"aws"`
}

// FileCredentialsConfig points at a YAML credentials document.
type FileCredentialsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// EnvCredentialsConfig reads <prefix>_<ID>_USERNAME and <prefix>_<ID>_PASSWORD.
type EnvCredentialsConfig struct {
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// AWSCredentialsConfig contains AWS Secrets Manager settings.
type AWSCredentialsConfig struct {
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	// SecretPrefix is prepended to the credential id to form the secret name.
	SecretPrefix string `yaml:"secret_prefix,omitempty" mapstructure:"secret_prefix"`
}

// Load reads and merges the configuration files in order. Environment
// variables with the FBUPLOAD_ prefix override file values. With no paths
// only defaults and the environment apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every key with viper so AutomaticEnv can override
// keys that are absent from the files.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)
	v.SetDefault("server.url", "")
	v.SetDefault("server.token_format", TokenFormatRaw)
	v.SetDefault("server.auth_header", DefaultAuthHeader)
	v.SetDefault("server.auth_scheme", "")
	v.SetDefault("transfer.strategy", StrategyDirect)
	v.SetDefault("transfer.remote_dir", DefaultRemoteDir)
	v.SetDefault("transfer.direct.method", "POST")
	v.SetDefault("transfer.direct.encoding", EncodingBinary)
	v.SetDefault("transfer.direct.multipart_field", DefaultMultipartField)
	v.SetDefault("transport.kind", TransportHTTP)
	v.SetDefault("transport.curl_path", DefaultCurlPath)
	v.SetDefault("transport.timeout", DefaultTimeout)
	v.SetDefault("transport.insecure_skip_verify", false)
	v.SetDefault("transport.verbose", false)
	v.SetDefault("transport.status_convention", "marker")
	v.SetDefault("transport.status_marker", DefaultStatusMarker)
	v.SetDefault("credentials.provider", ProviderFile)
	v.SetDefault("credentials.file.path", "")
	v.SetDefault("credentials.env.prefix", DefaultEnvCredentialPrefix)
	v.SetDefault("credentials.aws.region", "")
	v.SetDefault("credentials.aws.endpoint_url", "")
	v.SetDefault("credentials.aws.access_key_id", "")
	v.SetDefault("credentials.aws.secret_access_key", "")
	v.SetDefault("credentials.aws.secret_prefix", "")
}

// applyDefaults fills values that were explicitly set to empty.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Server.TokenFormat == "" {
		c.Server.TokenFormat = TokenFormatRaw
	}

	if c.Server.AuthHeader == "" {
		c.Server.AuthHeader = DefaultAuthHeader
	}

	if c.Transfer.Strategy == "" {
		c.Transfer.Strategy = StrategyDirect
	}

	if c.Transfer.RemoteDir == "" {
		c.Transfer.RemoteDir = DefaultRemoteDir
	}

	if c.Transfer.Direct.Method == "" {
		c.Transfer.Direct.Method = "POST"
	}

	c.Transfer.Direct.Method = strings.ToUpper(c.Transfer.Direct.Method)

	if c.Transfer.Direct.Encoding == "" {
		c.Transfer.Direct.Encoding = EncodingBinary
	}

	if c.Transfer.Direct.MultipartField == "" {
		c.Transfer.Direct.MultipartField = DefaultMultipartField
	}

	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportHTTP
	}

	if c.Transport.CurlPath == "" {
		c.Transport.CurlPath = DefaultCurlPath
	}

	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = DefaultTimeout
	}

	if c.Transport.StatusConvention == "" {
		c.Transport.StatusConvention = "marker"
	}

	if c.Transport.StatusMarker == "" {
		c.Transport.StatusMarker = DefaultStatusMarker
	}

	if c.Credentials.Provider == "" {
		c.Credentials.Provider = ProviderFile
	}

	if c.Credentials.Env.Prefix == "" {
		c.Credentials.Env.Prefix = DefaultEnvCredentialPrefix
	}
}

// Validate checks the configuration for errors. The server URL is checked
// by the uploader itself since it may come from the command line.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	switch c.Server.TokenFormat {
	case TokenFormatRaw, TokenFormatJSON:
	default:
		return fmt.Errorf("server.token_format: unknown format %q", c.Server.TokenFormat)
	}

	if strings.ContainsAny(c.Server.AuthHeader, " :\r\n") {
		return fmt.Errorf("server.auth_header: invalid header name %q", c.Server.AuthHeader)
	}

	switch c.Transfer.Strategy {
	case StrategyDirect, StrategyResumable:
	default:
		return fmt.Errorf("transfer.strategy: unknown strategy %q", c.Transfer.Strategy)
	}

	switch c.Transfer.Direct.Method {
	case "POST", "PUT":
	default:
		return fmt.Errorf("transfer.direct.method: must be POST or PUT, got %q", c.Transfer.Direct.Method)
	}

	switch c.Transfer.Direct.Encoding {
	case EncodingBinary, EncodingMultipart:
	default:
		return fmt.Errorf("transfer.direct.encoding: unknown encoding %q", c.Transfer.Direct.Encoding)
	}

	switch c.Transport.Kind {
	case TransportHTTP, TransportCurl:
	default:
		return fmt.Errorf("transport.kind: unknown transport %q", c.Transport.Kind)
	}

	if c.Transport.Timeout < 0 {
		return fmt.Errorf("transport.timeout: must not be negative")
	}

	switch c.Transport.StatusConvention {
	case "marker", "trailing", "auto":
	default:
		return fmt.Errorf("transport.status_convention: unknown convention %q", c.Transport.StatusConvention)
	}

	switch c.Credentials.Provider {
	case ProviderFile:
		if c.Credentials.File.Path == "" {
			return fmt.Errorf("credentials.file.path is required for the file provider")
		}
	case ProviderEnv, ProviderAWS:
	default:
		return fmt.Errorf("credentials.provider: unknown provider %q", c.Credentials.Provider)
	}

	return nil
}
