package cmsisdap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReportDevice is an in-memory stand-in for *usbtransport.Device.
type fakeReportDevice struct {
	written [][]byte
	reports [][]byte
}

func (f *fakeReportDevice) WriteReport(ifaceNum, epAddr int, buf []byte, reportSize int) error {
	padded := make([]byte, reportSize)
	copy(padded, buf)
	f.written = append(f.written, padded)
	return nil
}

func (f *fakeReportDevice) ReadReport(ifaceNum, epAddr int, reportSize int, timeout time.Duration) ([]byte, error) {
	report := f.reports[0]
	f.reports = f.reports[1:]
	return report, nil
}

func newTestFramer(fake *fakeReportDevice) *Framer {
	f := NewFramer(nil, Endpoints{InterfaceNumber: 0, InEndpoint: 0x81, OutEndpoint: 0x01}, 64, 0)
	f.dev = fake
	return f
}

func TestFramerSendPadsToReportSize(t *testing.T) {
	fake := &fakeReportDevice{reports: [][]byte{append([]byte{0x80}, make([]byte, 63)...)}}
	f := newTestFramer(fake)

	err := f.Send(Command{ID: 0x80, Data: []byte{0x01, 0x02}})
	require.NoError(t, err)

	require.Len(t, fake.written, 1)
	assert.Len(t, fake.written[0], 64)
	assert.Equal(t, byte(0x80), fake.written[0][0])
	assert.Equal(t, byte(0x01), fake.written[0][1])
	assert.Equal(t, byte(0x02), fake.written[0][2])
}

func TestFramerReceiveRejectsEmptyReport(t *testing.T) {
	fake := &fakeReportDevice{reports: [][]byte{{}}}
	f := newTestFramer(fake)

	_, err := f.Receive()
	assert.Error(t, err, "an empty HID report should be rejected")
}

func TestFramerSendAndReceiveMatchesID(t *testing.T) {
	report := make([]byte, 64)
	report[0] = 0x80
	report[1] = 0x01
	fake := &fakeReportDevice{reports: [][]byte{report}}
	f := newTestFramer(fake)

	resp, err := f.SendAndReceive(Command{ID: 0x80})
	require.NoError(t, err)
	assert.Equal(t, byte(0x80), resp.ID)
	assert.Equal(t, byte(0x01), resp.Data[0])
}

func TestFramerSendAndReceiveRejectsMismatchedID(t *testing.T) {
	report := make([]byte, 64)
	report[0] = 0x81
	fake := &fakeReportDevice{reports: [][]byte{report}}
	f := newTestFramer(fake)

	_, err := f.SendAndReceive(Command{ID: 0x80})
	assert.Error(t, err, "a response carrying a different command ID than what was sent must fail")
}

func TestFramerPacesWrites(t *testing.T) {
	reports := make([][]byte, 2)
	for i := range reports {
		reports[i] = make([]byte, 64)
	}
	fake := &fakeReportDevice{reports: reports}
	f := newTestFramer(fake)
	f.delay = 20 * time.Millisecond

	start := time.Now()
	require.NoError(t, f.Send(Command{ID: 0x00}))
	require.NoError(t, f.Send(Command{ID: 0x00}))
	assert.GreaterOrEqual(t, time.Since(start), f.delay, "the second write must wait out the configured inter-command delay")
}
