//go:build integration

package integration_test

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/oauth-server/internal/config"
	"github.com/openkcm/oauth-server/internal/dbtest/postgrestest"
	"github.com/openkcm/oauth-server/internal/dbtest/valkeytest"
)

type closeFunc func(ctx context.Context)

type infraStat struct {
	PostgresPort   nat.Port
	ValKeyPort     nat.Port
	ConfigFilePath string
	Procdir        string
	Socket         string
	Cfg            config.Config

	closeFuncs []closeFunc
}

func initInfra(t *testing.T, exeName string) (istat infraStat) {
	t.Helper()

	// Since the config is read from the file $PWD/config.yaml,
	// we're running a process in a subdirectory so that we aren't interferring with the other tests.
	wd, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")
	istat.Procdir = filepath.Join(wd, exeName+"-test")
	istat.ConfigFilePath = filepath.Join(istat.Procdir, "config.yaml")

	// Prepare a directory for the test
	err = os.MkdirAll(istat.Procdir, fs.ModePerm)
	require.NoError(t, err, "failed to create a dir for the process")

	err = os.WriteFile(istat.ConfigFilePath, []byte(validConfig), fs.ModePerm)
	require.NoError(t, err, "failed to write config file")

	err = commoncfg.LoadConfig(&istat.Cfg, nil, istat.Procdir)
	require.NoError(t, err, "failed to load config")

	istat.Socket = filepath.Join(istat.Procdir, exeName+".sock")
	istat.Cfg.HTTP.Address = "unix://" + istat.Socket

	return istat
}

func (istat *infraStat) PreparePostgres(t *testing.T) {
	t.Helper()

	pgClient, pgPort, pgTerminate := postgrestest.Start(t.Context())
	pgClient.Close()

	istat.PostgresPort = pgPort
	istat.closeFuncs = append(istat.closeFuncs, pgTerminate)

	istat.Cfg.Database.Driver = config.DatabaseDriverPostgres
	istat.Cfg.Database.Name = postgrestest.DBName
	istat.Cfg.Database.User = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBUser}
	istat.Cfg.Database.Password = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBPassword}
	istat.Cfg.Database.Host = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBHost}
	istat.Cfg.Database.Port = pgPort.Port()
	istat.Cfg.Database.SSLMode = postgrestest.DBSSLMode
}

// PrepareSQLite points the credential store at a database file in the
// process directory. The api-server migrates it on start.
func (istat *infraStat) PrepareSQLite(t *testing.T) {
	t.Helper()

	istat.Cfg.Database.Driver = config.DatabaseDriverSQLite
	istat.Cfg.Database.SQLite.Path = filepath.Join(istat.Procdir, "oauth-server.db")
}

func (istat *infraStat) PrepareValKey(t *testing.T) {
	t.Helper()

	vk := valkeytest.Start(t.Context())

	istat.ValKeyPort = vk.Port
	istat.closeFuncs = append(istat.closeFuncs, vk.Terminate)

	istat.Cfg.Ephemeral.Backend = config.EphemeralBackendValkey
	istat.Cfg.ValKey.Host = commoncfg.SourceRef{Source: "embedded", Value: vk.Address()}
	istat.Cfg.ValKey.User = commoncfg.SourceRef{Source: "embedded", Value: ""}
	istat.Cfg.ValKey.Password = commoncfg.SourceRef{Source: "embedded", Value: ""}
}

func (istat *infraStat) PrepareMemoryStore(t *testing.T) {
	t.Helper()

	istat.Cfg.Ephemeral.Backend = config.EphemeralBackendMemory
}

// PrepareConfig writes a config file for running the test into the ConfigFilePath.
func (istat *infraStat) PrepareConfig(t *testing.T) {
	t.Helper()

	cfgMap := make(map[string]any)
	err := mapstructure.Decode(istat.Cfg, &cfgMap)
	require.NoError(t, err, "failed to decode mapstructure")

	data, err := yaml.Marshal(cfgMap)
	require.NoError(t, err, "failed to marshal config")

	err = os.WriteFile(istat.ConfigFilePath, data, fs.ModePerm)
	require.NoError(t, err, "failed to write config")
}

// Start runs the binary with the given subcommand from the process
// directory and stops it when the test ends.
func (istat *infraStat) Start(t *testing.T, subcommand string) {
	t.Helper()

	currdir, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")

	cmdOutPath := filepath.Join(currdir, subcommand+".log")
	cmdOut, err := os.Create(cmdOutPath)
	require.NoError(t, err, "failed to create a log file")

	cmd := exec.CommandContext(t.Context(), filepath.Join(currdir, binary), subcommand, "--graceful-shutdown", "0s")
	cmd.Dir = istat.Procdir
	cmd.Stdout = cmdOut
	cmd.Stderr = cmdOut

	t.Logf("starting an app process. Logs will be saved into %s", cmdOutPath)
	require.NoError(t, cmd.Start(), "could not start command")

	// stop gracefully so that coverprofiles are written
	t.Cleanup(func() {
		_ = syscall.Kill(cmd.Process.Pid, syscall.SIGTERM)
		_ = cmd.Wait()
		cmdOut.Close()
	})
}

func (istat *infraStat) Close(ctx context.Context) {
	os.Remove(istat.ConfigFilePath)
	os.RemoveAll(istat.Procdir)

	for _, close := range istat.closeFuncs {
		close(ctx)
	}
}
