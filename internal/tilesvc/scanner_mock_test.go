package tilesvc_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/tilectl/internal/testutils"
	"github.com/srg/tilectl/internal/tilesvc"
	"github.com/srg/tilectl/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockScanner struct {
	mock.Mock
}

func (m *mockScanner) Scan(ctx context.Context, opts *scanner.ScanOptions, progress scanner.ProgressCallback) ([]scanner.Entry, error) {
	args := m.Called(ctx, opts, progress)
	entries, _ := args.Get(0).([]scanner.Entry)
	return entries, args.Error(1)
}

func tilesOnlyFor(d time.Duration) interface{} {
	return mock.MatchedBy(func(opts *scanner.ScanOptions) bool {
		return opts != nil && opts.TilesOnly && opts.Duration == d
	})
}

func TestScanPassesTileOptions(t *testing.T) {
	sc := &mockScanner{}
	sc.On("Scan", mock.Anything, tilesOnlyFor(3*time.Second), mock.Anything).
		Return([]scanner.Entry{{Address: "AA:BB:CC:DD:EE:01", Name: "Tile", RSSI: -60}}, nil).
		Once()

	svc := tilesvc.New(tilesvc.DefaultServiceConfig(), sc, nil, testutils.NewTestHelper(t).Logger)
	tiles, err := svc.Scan(context.Background(), 3*time.Second, false)

	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", tiles[0].Address)

	// fresh and non-empty: served from cache
	_, err = svc.Scan(context.Background(), 3*time.Second, false)
	require.NoError(t, err)
	sc.AssertNumberOfCalls(t, "Scan", 1)
}

func TestScanFailureMakesTagUnreachable(t *testing.T) {
	radioErr := errors.New("radio busy")
	sc := &mockScanner{}
	sc.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(nil, radioErr)

	svc := tilesvc.New(tilesvc.DefaultServiceConfig(), sc, nil, testutils.NewTestHelper(t).Logger)
	_, err := svc.Ring(context.Background(), tagFor("c452338d1e0a"), tilesvc.RingOptions{})

	assert.ErrorIs(t, err, tilesvc.ErrTagNotReachable)
	assert.ErrorIs(t, err, radioErr, "the scan error MUST stay in the chain")
	sc.AssertExpectations(t)
}
