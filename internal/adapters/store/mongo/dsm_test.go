package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

func TestDSMWritesCanonicalIntegersAsInt64(t *testing.T) {
	t.Parallel()

	raw, err := bson.Marshal(loadDoc{DSM: "35399211"})
	require.NoError(t, err)
	value := bson.Raw(raw).Lookup("dsm")
	assert.Equal(t, bsontype.Int64, value.Type)
	assert.Equal(t, int64(35399211), value.Int64())

	for _, id := range []string{"0150", "L-42", ""} {
		raw, err := bson.Marshal(loadDoc{DSM: dsm(id)})
		require.NoError(t, err)
		value := bson.Raw(raw).Lookup("dsm")
		assert.Equal(t, bsontype.String, value.Type, id)
		assert.Equal(t, id, value.StringValue())
	}
}

func TestDSMReadsEveryStoredForm(t *testing.T) {
	t.Parallel()

	for name, stored := range map[string]any{
		"int32":  int32(150),
		"int64":  int64(150),
		"double": 150.0,
		"string": "150",
	} {
		raw, err := bson.Marshal(bson.M{"dsm": stored})
		require.NoError(t, err)

		var doc loadDoc
		require.NoError(t, bson.Unmarshal(raw, &doc), name)
		assert.Equal(t, dsm("150"), doc.DSM, name)
	}

	raw, err := bson.Marshal(bson.M{"dsm": 1.5})
	require.NoError(t, err)
	var doc loadDoc
	require.Error(t, bson.Unmarshal(raw, &doc))
}

func TestDSMMatchCoversStringAndNumber(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bson.M{"$in": []any{"150", int64(150), "L-1"}}, dsmMatch("150", "L-1"))
}
