package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHousekeeperSamplesOnSchedule(t *testing.T) {
	sampler, err := NewStatsSampler(time.Hour, nil, nil)
	require.NoError(t, err)

	hk := NewHousekeeper("@every 10ms", sampler, nil)
	require.NoError(t, hk.Start())
	defer hk.Stop()

	require.Eventually(t, func() bool {
		return !hk.LastStats().SampledAt.IsZero()
	}, time.Second, 5*time.Millisecond, "housekeeper never produced a sample")
}

func TestHousekeeper_InvalidSchedule(t *testing.T) {
	sampler, err := NewStatsSampler(time.Hour, nil, nil)
	require.NoError(t, err)

	hk := NewHousekeeper("not a cron expression", sampler, nil)
	require.Error(t, hk.Start())
}
