package session

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMongoSessionCarriesObjectID(t *testing.T) {
	is := is.New(t)

	oid := primitive.NewObjectID()
	raw, err := bson.Marshal(bson.M{
		"_id":        oid,
		"id":         "s1",
		"user_id":    "u1",
		"agent_id":   "maya",
		"room_name":  "room-s1",
		"start_time": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"messages":   bson.A{},
		"metadata":   bson.M{},
	})
	is.NoErr(err)

	var doc mongoSession
	is.NoErr(bson.Unmarshal(raw, &doc))
	cs := doc.session()
	is.Equal(cs.ID, "s1")
	is.Equal(cs.RoomName, "room-s1")
	is.Equal(cs.StoreID, oid.Hex())

	body, err := json.Marshal(cs)
	is.NoErr(err)
	is.True(strings.Contains(string(body), `"_id":"`+oid.Hex()+`"`))
}

func TestSessionInsertOmitsStoreID(t *testing.T) {
	is := is.New(t)

	raw, err := bson.Marshal(ConversationSession{ID: "s1", StoreID: "ignored"})
	is.NoErr(err)
	var m bson.M
	is.NoErr(bson.Unmarshal(raw, &m))
	_, has := m["_id"]
	is.True(!has) // the driver assigns _id on insert

	body, err := json.Marshal(ConversationSession{ID: "s1"})
	is.NoErr(err)
	is.True(!strings.Contains(string(body), `"_id"`)) // stores without a native id omit it
}
