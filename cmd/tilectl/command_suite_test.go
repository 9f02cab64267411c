package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/srg/tilectl/internal/testutils"
)

const (
	addrKeys   = "C4:52:33:8D:1E:0A"
	addrWallet = "E1:7F:20:11:AB:03"
)

// CommandTestSuite runs the real command tree against fake tiles behind the
// devicefactory seam, with a config file in a temp dir.
type CommandTestSuite struct {
	testutils.FakeRadioSuite

	dir        string
	configPath string
	keys       *testutils.FakeTile
	wallet     *testutils.FakeTile
	stderr     *bytes.Buffer
}

func (s *CommandTestSuite) SetupTest() {
	s.FakeRadioSuite.SetupTest()

	s.keys = testutils.NewFakeTile(addrKeys)
	s.wallet = testutils.NewFakeTile(addrWallet)
	s.Connector.AddTile(s.keys)
	s.Connector.AddTile(s.wallet)
	s.Scanner.SetAdvertisements(
		testutils.CreateTileAdvertisement("Tile", addrKeys, -48).Build(),
		testutils.CreateTileAdvertisement("", addrWallet, -71).Build(),
	)

	s.dir = s.T().TempDir()
	s.configPath = filepath.Join(s.dir, "config.yaml")
	key := base64.StdEncoding.EncodeToString(testutils.DefaultAuthKey)
	s.WriteConfig(fmt.Sprintf(`
log_level: debug
scan_timeout: 50ms
auth_timeout: 2s
exchange_timeout: 200ms
packet_delay: 0s
connect_attempts: 2
tags:
  - uuid: c452338d1e0a
    name: Keys
    auth_key: %[1]s
    product: MATE
  - uuid: e17f2011ab03
    name: Wallet
    auth_key: %[1]s
  - uuid: 0123456789ab
    name: Lost
    auth_key: %[1]s
`, key))
}

// WriteConfig replaces the config file.
func (s *CommandTestSuite) WriteConfig(body string) {
	s.Require().NoError(os.WriteFile(s.configPath, []byte(body), 0o644))
}

// ExecuteCommand runs tilectl with args and returns stdout. Logs go to s.stderr.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	root := newRootCmd()
	out := new(bytes.Buffer)
	s.stderr = new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(s.stderr)
	root.SetArgs(append([]string{"--config", s.configPath, "--no-color"}, args...))
	err := root.Execute()
	return out.String(), err
}
