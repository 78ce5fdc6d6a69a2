package mongo

import (
	"fmt"
	"math"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// dsm is the load id as kept in the loads collection. Existing
// deployments store market ids as integers, so canonical decimal ids are
// written as int64 and any numeric or string form is read back.
type dsm string

var (
	_ bson.ValueMarshaler   = dsm("")
	_ bson.ValueUnmarshaler = (*dsm)(nil)
)

// numeric reports the int64 form of id when id is a canonical decimal
// integer. "0150" stays a string so the leading zero survives.
func (d dsm) numeric() (int64, bool) {
	n, err := strconv.ParseInt(string(d), 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != string(d) {
		return 0, false
	}
	return n, true
}

func (d dsm) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if n, ok := d.numeric(); ok {
		return bson.MarshalValue(n)
	}
	return bson.MarshalValue(string(d))
}

func (d *dsm) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		*d = dsm(raw.StringValue())
	case bsontype.Int32:
		*d = dsm(strconv.FormatInt(int64(raw.Int32()), 10))
	case bsontype.Int64:
		*d = dsm(strconv.FormatInt(raw.Int64(), 10))
	case bsontype.Double:
		f := raw.Double()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return fmt.Errorf("dsm %v is not an integer", f)
		}
		*d = dsm(strconv.FormatInt(int64(f), 10))
	default:
		return fmt.Errorf("dsm has unsupported bson type %s", t)
	}
	return nil
}

// dsmMatch is a filter value matching every stored form of the given ids.
func dsmMatch(ids ...string) bson.M {
	values := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		values = append(values, id)
		if n, ok := dsm(id).numeric(); ok {
			values = append(values, n)
		}
	}
	return bson.M{"$in": values}
}
