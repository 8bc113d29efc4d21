package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewText(t *testing.T) {
	msg, err := NewText(KindMMS, "hi", 1610000000500, 1610000000, "Thu Jan  7 06:13:20 2021", "")
	require.NoError(t, err)
	assert.Equal(t, KindMMS, msg.Kind)
	assert.Equal(t, int64(1610000000500), msg.RawMillis)
	assert.Nil(t, msg.Sender)
	assert.Nil(t, msg.Subject)

	_, err = NewText(KindEmail, "hi", 0, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestNewEmail(t *testing.T) {
	subject := ""
	msg := NewEmail("body", 1617630302, "Mon, 5 Apr 2021 13:45:02 -0000", Email{Subject: &subject})
	assert.Equal(t, KindEmail, msg.Kind)
	assert.Equal(t, int64(1617630302000), msg.RawMillis)
	require.NotNil(t, msg.Subject)
	assert.Empty(t, *msg.Subject)
	assert.Nil(t, msg.ReplyTo)
}

func TestSortByTimeIsStable(t *testing.T) {
	msgs := []Message{
		{Body: "b", Timestamp: 20},
		{Body: "a1", Timestamp: 10},
		{Body: "c", Timestamp: 30},
		{Body: "a2", Timestamp: 10},
	}
	SortByTime(msgs)

	var bodies []string
	for _, m := range msgs {
		bodies = append(bodies, m.Body)
	}
	assert.Equal(t, []string{"a1", "a2", "b", "c"}, bodies)
}

func TestSince(t *testing.T) {
	msgs := []Message{{Timestamp: 5}, {Timestamp: 10}, {Timestamp: 15}}
	assert.Len(t, Since(msgs, 0), 3)
	assert.Equal(t, []Message{{Timestamp: 10}, {Timestamp: 15}}, Since(msgs, 10))
}

func TestKindIsText(t *testing.T) {
	assert.True(t, KindSMS.IsText())
	assert.True(t, KindMMS.IsText())
	assert.False(t, KindEmail.IsText())
}
