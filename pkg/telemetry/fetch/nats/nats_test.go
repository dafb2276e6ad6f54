package nats

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
)

func TestSubject(t *testing.T) {
	s := Subject(DefaultSubjectPrefix, 17)
	assert.Equal(t, "lv.telemetry.lap.17", s)
	id, err := LapIDFromSubject(DefaultSubjectPrefix, s)
	require.NoError(t, err)
	assert.Equal(t, 17, id)

	_, err = LapIDFromSubject(DefaultSubjectPrefix, "other.17")
	assert.Error(t, err)
	_, err = LapIDFromSubject(DefaultSubjectPrefix, "lv.telemetry.lap.x")
	assert.Error(t, err)
}

func TestReply(t *testing.T) {
	lap := &model.LapTelemetry{
		MapDataAvailable: true,
		Points:           []model.TelemetryPoint{{Distance: 1, Speed: 2, Gear: 3}},
	}
	tests := []struct {
		name    string
		lap     *model.LapTelemetry
		err     error
		wantErr error
	}{
		{name: "lap", lap: lap},
		{name: "not found", err: fmt.Errorf("wrapped: %w", telemetry.ErrLapNotFound),
			wantErr: telemetry.ErrLapNotFound},
		{name: "remote error", err: errors.New("db down"), wantErr: ErrRemote},
		{name: "empty", wantErr: telemetry.ErrLapNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeReply(encodeReply(tt.lap, tt.err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lap, got)
		})
	}
}

func TestDecodeReply_garbage(t *testing.T) {
	_, err := decodeReply([]byte("not json"))
	assert.Error(t, err)
}
