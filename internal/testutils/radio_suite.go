package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/device"
	"github.com/srg/tilectl/internal/devicefactory"
	"github.com/stretchr/testify/suite"
)

// FakeRadioSuite swaps the devicefactory constructors for a FakeScanner and a
// FakeConnector around every test.
//
//	type RingSuite struct {
//	    testutils.FakeRadioSuite
//	}
//
//	func (s *RingSuite) TestRing() {
//	    tile := testutils.NewFakeTile("C4:52:33:8D:1E:0A")
//	    s.Connector.AddTile(tile)
//	    s.Scanner.SetAdvertisements(testutils.NewTileAdvertisement(tile.Addr, -50))
//	    ...
//	}
type FakeRadioSuite struct {
	suite.Suite

	Helper    *TestHelper
	Logger    *logrus.Logger
	Scanner   *FakeScanner
	Connector *FakeConnector

	originalScanner   func() (device.ScanningDevice, error)
	originalConnector func(*logrus.Logger) device.Connector
}

func (s *FakeRadioSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.Scanner = NewFakeScanner()
	s.Connector = NewFakeConnector()

	// subtests may call SetupTest again; keep the real constructors
	if s.originalScanner == nil {
		s.originalScanner = devicefactory.ScannerFactory
		s.originalConnector = devicefactory.ConnectorFactory
	}

	devicefactory.ScannerFactory = func() (device.ScanningDevice, error) {
		return s.Scanner, nil
	}
	devicefactory.ConnectorFactory = func(*logrus.Logger) device.Connector {
		return s.Connector
	}
}

func (s *FakeRadioSuite) TearDownTest() {
	if s.originalScanner != nil {
		devicefactory.ScannerFactory = s.originalScanner
	}
	if s.originalConnector != nil {
		devicefactory.ConnectorFactory = s.originalConnector
	}
}
