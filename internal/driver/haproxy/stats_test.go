package haproxy

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

const sampleStats = `# pxname,svname,qcur,scur,stot,bin,bout,status,chkfail,type
pool-1,member-1,0,2,120,1024,4096,UP,0,2
pool-1,member-2,0,0,30,256,512,DOWN 1/2,3,2
pool-1,BACKEND,0,2,150,1280,4608,UP,,1
pool-2,BACKEND,0,1,50,100,200,UP,,1
`

func TestParseStats(t *testing.T) {
	report, err := parseStats(bufio.NewScanner(strings.NewReader(sampleStats)))
	require.NoError(t, err)

	// backend rows aggregate across pools
	assert.Equal(t, uint64(1380), report.BytesIn)
	assert.Equal(t, uint64(4808), report.BytesOut)
	assert.Equal(t, uint64(3), report.ActiveConnections)
	assert.Equal(t, uint64(200), report.TotalConnections)

	require.Len(t, report.Members, 2)
	assert.Equal(t, lb.OperatingOnline, report.Members["member-1"].Status)
	assert.Equal(t, lb.OperatingOffline, report.Members["member-2"].Status)
	assert.Equal(t, "DOWN 1/2", report.Members["member-2"].Health)
	assert.Equal(t, "3", report.Members["member-2"].FailedChecks)
}

func TestParseStatsSkipsUnknownTypes(t *testing.T) {
	input := `# pxname,svname,scur,stot,bin,bout,status,chkfail,type
listener-1,FRONTEND,5,500,9999,9999,OPEN,,0
pool-1,BACKEND,1,10,100,200,UP,,1
`

	report, err := parseStats(bufio.NewScanner(strings.NewReader(input)))
	require.NoError(t, err)

	// frontend counters are not part of the report
	assert.Equal(t, uint64(100), report.BytesIn)
	assert.Equal(t, uint64(10), report.TotalConnections)
	assert.Empty(t, report.Members)
}

func TestParseStatsEmptyResponse(t *testing.T) {
	_, err := parseStats(bufio.NewScanner(strings.NewReader("")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatsParse)
}

func TestParseStatsMissingHeader(t *testing.T) {
	_, err := parseStats(bufio.NewScanner(strings.NewReader("pool-1,BACKEND,1\n")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatsParse)
}
