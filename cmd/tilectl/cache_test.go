package main

import (
	"path/filepath"
	"testing"

	"github.com/srg/tilectl/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type CacheCommandSuite struct {
	CommandTestSuite
}

func TestCacheCommandSuite(t *testing.T) {
	suite.Run(t, new(CacheCommandSuite))
}

func (s *CacheCommandSuite) TestStatsEmpty() {
	out, err := s.ExecuteCommand("cache", "stats")

	s.Require().NoError(err)
	s.Regexp(`UUID mappings:\s+0\n`, out)
	s.Regexp(`Last scan:\s+never\n`, out)
	s.Regexp(`Scan stale:\s+yes\n`, out)
}

func (s *CacheCommandSuite) TestCacheSurvivesAcrossCommands() {
	// GOAL: Verify the resolution cache written by one command is reused by the next
	//
	// TEST SCENARIO: ring twice → one BLE scan in total; stats report the mapping and both Tiles

	_, err := s.ExecuteCommand("ring", "Keys")
	s.Require().NoError(err)
	_, err = s.ExecuteCommand("ring", "Keys")
	s.Require().NoError(err)
	s.Equal(1, s.Scanner.Scans(), "second ring MUST resolve from the cache file")
	s.Len(s.Connector.Calls(), 2)

	out, err := s.ExecuteCommand("cache", "stats", "-f", "json")
	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(out, `{
		"uuid_mappings": 1,
		"cached_devices": 2,
		"discovered_tiles": 2,
		"last_scan": "<<PRESENCE>>",
		"scan_stale": false
	}`)
}

func (s *CacheCommandSuite) TestRefreshAndClear() {
	out, err := s.ExecuteCommand("cache", "stats", "--refresh")
	s.Require().NoError(err)
	s.Equal(1, s.Scanner.Scans())
	s.Regexp(`Discovered Tiles:\s+2\n`, out)
	s.Regexp(`Scan stale:\s+no\n`, out)
	s.FileExists(filepath.Join(s.dir, "cache.yaml"))

	out, err = s.ExecuteCommand("cache", "clear")
	s.Require().NoError(err)
	s.Equal("Cache cleared\n", out)
	s.NoFileExists(filepath.Join(s.dir, "cache.yaml"))

	out, err = s.ExecuteCommand("cache", "stats")
	s.Require().NoError(err)
	s.Regexp(`Discovered Tiles:\s+0\n`, out)

	_, err = s.ExecuteCommand("cache", "clear")
	s.NoError(err, "clearing an absent cache MUST succeed")
}
