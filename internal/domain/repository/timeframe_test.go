package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTimeframe(t *testing.T) {
	assert.Equal(t, TFH4, NormalizeTimeframe("H4"))
	assert.Equal(t, TFH1, NormalizeTimeframe(""))
	assert.Equal(t, TFH1, NormalizeTimeframe("W1"))
}

func TestTimeframeDuration(t *testing.T) {
	assert.Equal(t, 15*time.Minute, TFM15.Duration())
	assert.Equal(t, time.Hour, TFH1.Duration())
	assert.Equal(t, 4*time.Hour, TFH4.Duration())
	assert.Equal(t, 24*time.Hour, TFD1.Duration())
}

func TestScanTimeframesSmallestFirst(t *testing.T) {
	tfs := ScanTimeframes()
	assert.Equal(t, []Timeframe{TFM15, TFH1, TFH4, TFD1}, tfs)
}

func TestPipSize(t *testing.T) {
	assert.InDelta(t, 0.0001, PipSize(5), 1e-12, "fractional pip FX quote")
	assert.InDelta(t, 0.0001, PipSize(4), 1e-12)
	assert.InDelta(t, 0.001, PipSize(3), 1e-12, "JPY style quote")
	assert.InDelta(t, 0.01, PipSize(2), 1e-12)
}
