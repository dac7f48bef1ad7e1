package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpreserve/drreplicator/common/logger"
	"github.com/dpreserve/drreplicator/internal/domain"
)

func testQueue() *RedisQueue {
	return NewRedisQueue(nil, "test-consumer", logger.New("error", "console"))
}

func TestDecodeCarrier_InformationObjectMessage(t *testing.T) {
	q := testQueue()
	ref := uuid.New()

	carrier := q.decodeCarrier("queue-1", "1-0", map[string]interface{}{
		"body": `{"type":"InformationObjectMessage","ref":"` + ref.String() + `"}`,
	})

	require.NotNil(t, carrier.Decoded)
	assert.Equal(t, domain.InformationObjectMessageKind, carrier.Decoded.Kind)
	assert.Equal(t, ref, carrier.Decoded.Ref)
	assert.Equal(t, "1-0", carrier.ReceiptHandle)
	assert.Equal(t, "queue-1", carrier.QueueURL)
}

func TestDecodeCarrier_ContentObjectMessage(t *testing.T) {
	q := testQueue()
	ref := uuid.New()

	carrier := q.decodeCarrier("queue-1", "2-0", map[string]interface{}{
		"body": `{"type":"ContentObjectMessage","ref":"` + ref.String() + `"}`,
	})

	require.NotNil(t, carrier.Decoded)
	assert.Equal(t, domain.ContentObjectMessageKind, carrier.Decoded.Kind)
}

func TestDecodeCarrier_UnrecognizedTypeDecodesToAbsent(t *testing.T) {
	q := testQueue()

	carrier := q.decodeCarrier("queue-1", "3-0", map[string]interface{}{
		"body": `{"type":"DeletionMessage","ref":"` + uuid.New().String() + `"}`,
	})

	assert.Nil(t, carrier.Decoded)
	assert.Equal(t, "3-0", carrier.ReceiptHandle)
}

func TestDecodeCarrier_MalformedJSONDecodesToAbsent(t *testing.T) {
	q := testQueue()

	carrier := q.decodeCarrier("queue-1", "4-0", map[string]interface{}{
		"body": "{not json",
	})

	assert.Nil(t, carrier.Decoded)
}

func TestDecodeCarrier_MissingBodyDecodesToAbsent(t *testing.T) {
	q := testQueue()

	carrier := q.decodeCarrier("queue-1", "5-0", map[string]interface{}{})

	assert.Nil(t, carrier.Decoded)
}
