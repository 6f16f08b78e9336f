package amos

import (
	"testing"
	"time"

	errs "amosync/pkg/errors"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	e := NewEndpoints("")

	tests := []struct {
		id, year, month int
		want            string
	}{
		{65, 2016, 1, BaseURL + "/zipfiles/2016/65/0065/00000065/2016.01.zip"},
		{65, 2011, 1, BaseURL + "/2012zipfiles/2011/65/0065/00000065/2011.01.zip"},
		{65, 2012, 12, BaseURL + "/2012zipfiles/2012/65/0065/00000065/2012.12.zip"},
		{65, 2013, 1, BaseURL + "/zipfiles/2013/65/0065/00000065/2013.01.zip"},
		{12345678, 2015, 7, BaseURL + "/zipfiles/2015/78/5678/12345678/2015.07.zip"},
		{3, 2014, 10, BaseURL + "/zipfiles/2014/03/0003/00000003/2014.10.zip"},
	}

	for _, tt := range tests {
		got := e.Resolve(tt.id, tt.year, tt.month)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, e.Resolve(tt.id, tt.year, tt.month), "resolve is deterministic")
	}
}

func TestEndpointsTrimBase(t *testing.T) {
	e := NewEndpoints("http://mirror.example/")
	assert.Equal(t, "http://mirror.example/get_cams", e.CameraList())
	assert.Equal(t, "http://mirror.example/webcam_info?id=65", e.CameraInfo(65))
	assert.Equal(t, "http://mirror.example/image/65/20160101_000356.jpg", e.Image(65, "20160101_000356"))
	assert.Equal(t, "http://mirror.example/month_of_images?camera_id=65&month=1&year=2016", e.MonthOfImages(65, 2016, 1))
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("20160101_000356")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 3, 56, 0, time.UTC), ts)
	assert.Equal(t, "20160101_000356", FormatTimestamp(ts))

	for _, bad := range []string{"", "20160101000356", "2016010_1000356", "20161301_000000", "2016ab01_000000"} {
		_, err := ParseTimestamp(bad)
		var typed *errs.Error
		if assert.ErrorAs(t, err, &typed, "input %q", bad) {
			assert.Equal(t, errs.ErrorTypeParsing, typed.Type)
		}
	}
}

func TestCameraRecordJSON(t *testing.T) {
	lat := 38.5
	added := time.Date(2009, 5, 8, 22, 50, 45, 0, time.UTC)
	record := CameraRecord{
		ID:        65,
		Latitude:  &lat,
		DateAdded: &added,
		Extra:     map[string]string{"name": "Forest Park"},
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, float64(65), decoded["id"])
	assert.Equal(t, 38.5, decoded["latitude"])
	assert.Nil(t, decoded["longitude"])
	assert.Equal(t, "2009-05-08T22:50:45Z", decoded["date_added"])
	assert.Nil(t, decoded["last_capture"])
	assert.Equal(t, []interface{}{}, decoded["tags"])
	assert.Equal(t, "Forest Park", decoded["name"])
	assert.Contains(t, decoded, "width")
}
