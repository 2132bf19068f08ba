// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTrackingID(t *testing.T) {
	assert.True(t, ValidTrackingID("abc"))
	assert.True(t, ValidTrackingID("A1-b_2"))
	assert.True(t, ValidTrackingID("123456789012345678901234"))
	assert.False(t, ValidTrackingID("ab"))
	assert.False(t, ValidTrackingID("1234567890123456789012345"))
	assert.False(t, ValidTrackingID("has space"))
	assert.False(t, ValidTrackingID("dot.ted"))
}

func TestPsResultKeepsWireOrder(t *testing.T) {
	// Deliberately not alphabetical: decoding must keep the object order.
	raw := []byte(`{"zzz":{"process_name":"c","start_time":"t","status":"running"},` +
		`"aaa":{"process_name":"a","start_time":"t","status":"stopped"},` +
		`"mmm":{"process_name":"b","start_time":"t","status":"running"}}`)

	entries, err := unmarshalPsResult(raw)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "zzz", entries[0].ID)
	assert.Equal(t, "aaa", entries[1].ID)
	assert.Equal(t, "mmm", entries[2].ID)
	assert.Equal(t, StatusStopped, entries[1].Status)
}

func TestPsResultRejectsNonObject(t *testing.T) {
	_, err := unmarshalPsResult([]byte(`["aaa"]`))
	require.Error(t, err)
}
