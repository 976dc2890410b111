package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureVectorValuesFollowsSchemaOrder(t *testing.T) {
	v := FeatureVector{"memory": 2, "cpu": 1, "network_conn": 3}
	schema := v.Schema()
	assert.Equal(t, Schema{"cpu", "memory", "network_conn"}, schema)

	values, err := v.Values(schema)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, values)
}

func TestFeatureVectorValuesRejectsMismatch(t *testing.T) {
	schema := Schema{"cpu", "memory"}

	_, err := FeatureVector{"cpu": 1}.Values(schema)
	require.Error(t, err)

	_, err = FeatureVector{"cpu": 1, "disk": 2}.Values(schema)
	require.Error(t, err)

	_, err = FeatureVector{"cpu": 1, "memory": 2, "disk": 3}.Values(schema)
	require.Error(t, err)
}

func TestMergeLaterVectorsWin(t *testing.T) {
	merged := Merge(FeatureVector{"cpu": 1, "login_fail": 2}, FeatureVector{"cpu": 9})
	assert.Equal(t, FeatureVector{"cpu": 9, "login_fail": 2}, merged)
}

func TestCloneIsIndependent(t *testing.T) {
	orig := FeatureVector{"cpu": 1}
	clone := orig.Clone()
	clone["cpu"] = 2
	assert.Equal(t, 1.0, orig["cpu"])
	assert.Nil(t, FeatureVector(nil).Clone())
}
