package config

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Addr          string
	DBUrl         string
	TokenSecret   string
	TokenTTL      time.Duration
	AdminUser     string
	AdminPassword string
	Debug         bool
}

// Load reads the configuration from command line arguments, falling back to
// QSURVEY_* environment variables (e.g. QSURVEY_TOKEN_SECRET) and defaults.
func Load(args []string) (cfg Config, err error) {
	flags := pflag.NewFlagSet("qsurvey", pflag.ContinueOnError)
	flags.String("host", "0.0.0.0", "listen host name")
	flags.Uint("port", 80, "listen port number")
	flags.String("db-url", "qsurvey.sqlite", "path to SQLite3 DB file")
	flags.String("token-secret", "", "secret key for token encryption and decryption")
	flags.Uint("token-ttl", 120, "token TTL in seconds")
	flags.String("admin-user", "", "name of the admin user to create or update on startup")
	flags.String("admin-password", "", "password of the admin user")
	flags.Bool("debug", false, "log at DEBUG level")
	if err = flags.Parse(args); err != nil {
		return
	}

	v := viper.New()
	v.SetEnvPrefix("qsurvey")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err = v.BindPFlags(flags); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(v.GetString("host"), strconv.Itoa(int(v.GetUint("port"))))
	cfg.DBUrl = v.GetString("db-url")
	cfg.TokenSecret = v.GetString("token-secret")
	cfg.TokenTTL = time.Duration(v.GetUint("token-ttl")) * time.Second
	cfg.AdminUser = v.GetString("admin-user")
	cfg.AdminPassword = v.GetString("admin-password")
	cfg.Debug = v.GetBool("debug")

	switch {
	case cfg.TokenSecret == "":
		err = errors.New("missing parameter --token-secret")
	case cfg.AdminUser != "" && cfg.AdminPassword == "":
		err = errors.New("missing parameter --admin-password")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
