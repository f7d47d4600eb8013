// Package config loads pegfollow-node's settings from a layered INI
// file + environment overrides, the way Emyrk-pegnet's common.Config does
// for its miner, except every setting here is read through one typed
// Settings struct instead of the section.key string lookups go-config
// exposes directly.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-ini/ini"
	goconfig "github.com/zpatrick/go-config"

	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/faults"
)

// Settings is every configuration value pegfollow-node needs to start.
type Settings struct {
	Network        asset.Network
	Genesis        uint32
	FactomdServer  string // host:port of factomd's API
	PostgresDSN    string // empty means run with MemoryKV instead
	ListenAddr     string
	APIAuthToken   string
	GraderPolicy   string // "stock" or "straight_difficulty"
}

// defaults mirrors the [Section]key=value shape of an INI file so the
// fallback provider composes with a real file the same way Emyrk-pegnet's
// defaultconfig.ini composes with UnitTestConfigProvider.
const defaultINI = `
[Node]
  Network=MainNet
  Genesis=1
  GraderPolicy=stock
  ListenAddr=:8787

[Factomd]
  Server=localhost:8088

[Storage]
  PostgresDSN=
`

// iniFileProvider loads settings/value pairs out of an INI document,
// exactly like Emyrk-pegnet's UnitTestConfigProvider, generalized to read
// from either a literal string or a file path.
type iniFileProvider struct {
	raw  string
	path string
}

func (p *iniFileProvider) Load() (map[string]string, error) {
	var file *ini.File
	var err error
	if p.path != "" {
		file, err = ini.Load(p.path)
	} else {
		file, err = ini.Load([]byte(p.raw))
	}
	if err != nil {
		return nil, err
	}

	settings := make(map[string]string)
	for _, section := range file.Sections() {
		for _, key := range section.Keys() {
			settings[fmt.Sprintf("%s.%s", section.Name(), key.Name())] = key.String()
		}
	}
	return settings, nil
}

// envOverrideProvider overrides a handful of settings from the process
// environment, for the credentials an INI file should never carry
// (Postgres DSN, the RPC bearer token).
type envOverrideProvider struct{}

func (envOverrideProvider) Load() (map[string]string, error) {
	settings := make(map[string]string)
	set := func(token, envKey string) {
		if v := os.Getenv(envKey); v != "" {
			settings[token] = v
		}
	}
	set("Storage.PostgresDSN", "PEGFOLLOW_POSTGRES_DSN")
	set("Factomd.Server", "PEGFOLLOW_FACTOMD_SERVER")
	set("Node.ListenAddr", "PEGFOLLOW_LISTEN_ADDR")
	set("Node.Network", "PEGFOLLOW_NETWORK")
	set("Node.Genesis", "PEGFOLLOW_GENESIS")
	set("Node.GraderPolicy", "PEGFOLLOW_GRADER_POLICY")
	set("API.AuthToken", "PEGFOLLOW_API_TOKEN")
	return settings, nil
}

// Load builds Settings by layering the default INI, an optional file at
// path (path == "" skips it), and environment overrides, in that order —
// each provider's values overwrite the previous provider's for any key
// both set, matching go-config's documented provider precedence.
func Load(path string) (Settings, error) {
	providers := []goconfig.Provider{&iniFileProvider{raw: defaultINI}}
	if path != "" {
		providers = append(providers, &iniFileProvider{path: path})
	}
	providers = append(providers, envOverrideProvider{})

	cfg := goconfig.NewConfig(providers)

	network, err := cfg.String("Node.Network")
	if err != nil {
		network = "MainNet"
	}

	genesisStr, _ := cfg.String("Node.Genesis")
	genesis, err := strconv.ParseUint(genesisStr, 10, 32)
	if err != nil {
		return Settings{}, faults.Wrap(faults.ConfigurationFault, "parsing Node.Genesis", err)
	}

	factomdServer, _ := cfg.String("Factomd.Server")
	postgresDSN, _ := cfg.String("Storage.PostgresDSN")
	listenAddr, _ := cfg.String("Node.ListenAddr")
	graderPolicy, _ := cfg.String("Node.GraderPolicy")
	authToken, _ := cfg.String("API.AuthToken")

	var net asset.Network
	switch network {
	case "MainNet":
		net = asset.MainNet
	case "TestNet":
		net = asset.TestNet
	default:
		return Settings{}, faults.Wrap(faults.ConfigurationFault, "unknown Node.Network", fmt.Errorf("%q", network))
	}

	return Settings{
		Network:       net,
		Genesis:       uint32(genesis),
		FactomdServer: factomdServer,
		PostgresDSN:   postgresDSN,
		ListenAddr:    listenAddr,
		APIAuthToken:  authToken,
		GraderPolicy:  graderPolicy,
	}, nil
}
