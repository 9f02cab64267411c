package main

import (
	"testing"

	"github.com/srg/tilectl/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type InspectCommandSuite struct {
	CommandTestSuite
}

func TestInspectCommandSuite(t *testing.T) {
	suite.Run(t, new(InspectCommandSuite))
}

func (s *InspectCommandSuite) TestInspectTable() {
	s.keys.Model = ""
	s.keys.TDIFeatures = 0x0B

	out, err := s.ExecuteCommand("inspect", "Keys")

	s.Require().NoError(err, "stderr: %s", s.stderr)
	testutils.NewTextAsserter(s.T()).Assert(out, `Tag:          Keys
Address:      C4:52:33:8D:1E:0A
Tile ID:      cd46a6a4ddad54f0
Firmware:     01.12.14.0
Model:        -
Hardware:     17.03
Channel:      3
Max payload:  20
`)
	s.Empty(s.keys.Rings())
}

func (s *InspectCommandSuite) TestInspectJSON() {
	out, err := s.ExecuteCommand("inspect", "wallet", "-f", "json")

	s.Require().NoError(err)
	testutils.NewJSONAsserter(s.T()).Assert(out, `{
		"uuid": "e17f2011ab03",
		"address": "E1:7F:20:11:AB:03",
		"tile_id": "cd46a6a4ddad54f0",
		"firmware": "01.12.14.0",
		"model": "T1",
		"hardware": "17.03",
		"channel": 3,
		"max_payload": 20,
		"features": "010203"
	}`)
}

func (s *InspectCommandSuite) TestInspectUnreachable() {
	_, err := s.ExecuteCommand("inspect", "Lost")

	s.Require().Error(err)
	s.Contains(FormatUserError(err), "not found via Bluetooth")
}
