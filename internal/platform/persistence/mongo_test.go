package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestMongoDB_Accessors(t *testing.T) {
	// mongo.Connect does not dial until the first operation
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(context.Background()) }()

	mdb := &MongoDB{
		logger:   newTestLogger(),
		client:   client,
		database: client.Database("kaybank_audit_test"),
	}

	assert.Equal(t, "kaybank_audit_test", mdb.Database().Name())
	assert.Equal(t, "ledger_records", mdb.Collection("ledger_records").Name())
}
