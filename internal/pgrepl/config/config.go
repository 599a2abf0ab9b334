package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/log"
)

// EnvPrefix is the prefix of the environment variables overriding the config file,
// for example PGREPL_PRIMARY_PASSWORD.
const EnvPrefix = "pgrepl"

const (
	// DefaultPublication is the name of the publication maintained on the primary.
	DefaultPublication = "master_pub"
	// DefaultSubscription is the name of the subscription maintained on the replica.
	DefaultSubscription = "slave_sub"
	// DefaultListenAddr is the address the web form listens on.
	DefaultListenAddr = "127.0.0.1:8501"
)

// Duration is a trick to let our TOML library parse durations from strings.
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses a duration such as "10s". It is used by both the TOML
// decoder and envconfig.
func (d *Duration) UnmarshalText(text []byte) error {
	td, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// MarshalText renders the duration in time.Duration notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Logging contains logging configuration values
type Logging struct {
	Format string `toml:"format,omitempty" envconfig:"format"`
	Level  string `toml:"level,omitempty" envconfig:"level"`
}

// DB holds the connection settings of one PostgreSQL endpoint.
type DB struct {
	Host        string `toml:"host,omitempty" envconfig:"host"`
	Port        int    `toml:"port,omitempty" envconfig:"port"`
	User        string `toml:"user,omitempty" envconfig:"user"`
	Password    string `toml:"password,omitempty" envconfig:"password"`
	DBName      string `toml:"dbname,omitempty" envconfig:"dbname"`
	SSLMode     string `toml:"sslmode,omitempty" envconfig:"sslmode"`
	SSLCert     string `toml:"sslcert,omitempty" envconfig:"sslcert"`
	SSLKey      string `toml:"sslkey,omitempty" envconfig:"sslkey"`
	SSLRootCert string `toml:"sslrootcert,omitempty" envconfig:"sslrootcert"`
	// ReplicationHost is the host at which the other PostgreSQL server reaches this
	// endpoint. It ends up in the subscription connection string and is only needed
	// when it differs from Host, for example inside a container network.
	ReplicationHost string `toml:"replication_host,omitempty" envconfig:"replication_host"`
	// ReplicationPort complements ReplicationHost.
	ReplicationPort int `toml:"replication_port,omitempty" envconfig:"replication_port"`
}

// Address identifies the endpoint in logs and error messages. It never contains credentials.
func (db DB) Address() string {
	return fmt.Sprintf("%s:%d/%s", db.Host, db.Port, db.DBName)
}

// Replication configures the publication/subscription pair.
type Replication struct {
	Publication  string `toml:"publication,omitempty" envconfig:"publication"`
	Subscription string `toml:"subscription,omitempty" envconfig:"subscription"`
	// CopyData is passed to CREATE SUBSCRIPTION. The dual writer already keeps both
	// endpoints populated, so copying existing rows would collide on primary keys.
	CopyData bool `toml:"copy_data,omitempty" envconfig:"copy_data"`
	// WaitTimeout bounds how long propagation to the replica is awaited.
	WaitTimeout Duration `toml:"wait_timeout,omitempty" envconfig:"wait_timeout"`
	// PollInterval is the pause between two reads of the replica while waiting.
	PollInterval Duration `toml:"poll_interval,omitempty" envconfig:"poll_interval"`
}

// DualWrite configures the dual writer.
type DualWrite struct {
	// ReplicaWrites controls whether row changes are applied to the replica directly in
	// addition to the primary. Table DDL always goes to both.
	ReplicaWrites bool `toml:"replica_writes" envconfig:"replica_writes"`
}

// Config is a container for everything found in the TOML config file
type Config struct {
	ListenAddr     string      `toml:"listen_addr,omitempty" envconfig:"listen_addr"`
	ConnectTimeout Duration    `toml:"connect_timeout,omitempty" envconfig:"connect_timeout"`
	Logging        Logging     `toml:"logging,omitempty" envconfig:"logging"`
	Primary        DB          `toml:"primary,omitempty" envconfig:"primary"`
	Replica        DB          `toml:"replica,omitempty" envconfig:"replica"`
	Replication    Replication `toml:"replication,omitempty" envconfig:"replication"`
	DualWrite      DualWrite   `toml:"dual_write" envconfig:"dual_write"`
}

// Default returns the configuration used when no config file is given. The endpoints
// match the classic two-container setup: primary on 5432, replica on 5433.
func Default() Config {
	return Config{
		ListenAddr:     DefaultListenAddr,
		ConnectTimeout: Duration(30 * time.Second),
		Primary: DB{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "testdb",
			SSLMode: "disable",
		},
		Replica: DB{
			Host:    "localhost",
			Port:    5433,
			User:    "postgres",
			DBName:  "testdb",
			SSLMode: "disable",
		},
		Replication: DefaultReplicationConfig(),
		DualWrite:   DualWrite{ReplicaWrites: true},
	}
}

// DefaultReplicationConfig returns the default values for replication configuration.
func DefaultReplicationConfig() Replication {
	return Replication{
		Publication:  DefaultPublication,
		Subscription: DefaultSubscription,
		WaitTimeout:  Duration(10 * time.Second),
		PollInterval: Duration(200 * time.Millisecond),
	}
}

// Load initializes the Config from the TOML document and the environment.
// Environment variables take precedence over the file, the file over the defaults.
func Load(file io.Reader) (Config, error) {
	cfg := Default()

	b, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if len(bytes.TrimSpace(b)) > 0 {
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("load toml: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("envconfig: %w", err)
	}

	cfg.setDefaults()

	return cfg, nil
}

// FromFile loads the config for the passed file path
func FromFile(filePath string) (Config, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	return Load(f)
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.ConnectTimeout.Duration() == 0 {
		c.ConnectTimeout = Duration(30 * time.Second)
	}

	defaults := DefaultReplicationConfig()
	if c.Replication.Publication == "" {
		c.Replication.Publication = defaults.Publication
	}
	if c.Replication.Subscription == "" {
		c.Replication.Subscription = defaults.Subscription
	}
	if c.Replication.WaitTimeout.Duration() == 0 {
		c.Replication.WaitTimeout = defaults.WaitTimeout
	}
	if c.Replication.PollInterval.Duration() == 0 {
		c.Replication.PollInterval = defaults.PollInterval
	}

	for _, db := range []*DB{&c.Primary, &c.Replica} {
		if db.Port == 0 {
			db.Port = 5432
		}
	}
}

var (
	errNoHost            = errors.New("host is not set")
	errNoDBName          = errors.New("dbname is not set")
	errSameEndpoint      = errors.New("primary and replica point to the same database")
	errInvalidIdentifier = errors.New("must be a lower case SQL identifier of at most 63 bytes")
	errPollInterval      = errors.New("replication.poll_interval must be shorter than replication.wait_timeout")
	errInvalidLogFormat  = errors.New("invalid logging format")

	identifierRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)
)

// Validate establishes if the config is valid
func (c *Config) Validate() error {
	for _, endpoint := range []struct {
		name string
		db   DB
	}{
		{name: "primary", db: c.Primary},
		{name: "replica", db: c.Replica},
	} {
		if endpoint.db.Host == "" {
			return fmt.Errorf("%s: %w", endpoint.name, errNoHost)
		}
		if endpoint.db.DBName == "" {
			return fmt.Errorf("%s: %w", endpoint.name, errNoDBName)
		}
	}

	if c.Primary.Address() == c.Replica.Address() {
		return fmt.Errorf("%q: %w", c.Primary.Address(), errSameEndpoint)
	}

	for key, name := range map[string]string{
		"replication.publication":  c.Replication.Publication,
		"replication.subscription": c.Replication.Subscription,
	} {
		if len(name) > 63 || !identifierRegexp.MatchString(name) {
			return fmt.Errorf("%s %q: %w", key, name, errInvalidIdentifier)
		}
	}

	if c.Replication.PollInterval.Duration() >= c.Replication.WaitTimeout.Duration() {
		return errPollInterval
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%q: %w", c.Logging.Format, errInvalidLogFormat)
	}

	return nil
}

// ConfigureLogger applies the logging configuration to all loggers.
func (c *Config) ConfigureLogger() *logrus.Entry {
	log.Configure(log.Loggers, c.Logging.Format, c.Logging.Level)

	return log.Default()
}
