package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagePost_WireFieldNames(t *testing.T) {
	data, err := json.Marshal(MessagePost{BoardID: "b", Content: "c", UserID: "u", UserName: "n", Timestamp: "t"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"boardId":"b","content":"c","userId":"u","userName":"n","timestamp":"t"}`, string(data))

	data, err = json.Marshal(BoardCreation{Name: "n", Description: "d", CreatedBy: "u", Timestamp: "t"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"n","description":"d","createdBy":"u","timestamp":"t"}`, string(data))
}

func TestDecode_MalformedIsPermanent(t *testing.T) {
	_, err := Decode[UserRegistration](Envelope{Kind: KindUserRegistration, Payload: []byte("{not json")})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.False(t, IsRetriable(err))
}

func TestDecode_MissingFieldIsPermanent(t *testing.T) {
	env, err := New(KindUserRegistration, "a@x.com", map[string]string{"name": "A", "timestamp": "now"}, time.Now())
	require.NoError(t, err)

	_, err = Decode[UserRegistration](env)
	assert.True(t, IsPermanent(err))
}

func TestDecode_Valid(t *testing.T) {
	in := UserRegistration{Name: "A", Email: "a@x.com", Timestamp: FormatTime(time.Now())}
	env, err := New(KindUserRegistration, in.Email, in, time.Now())
	require.NoError(t, err)

	out, err := Decode[UserRegistration](env)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRetriableTaxonomy(t *testing.T) {
	assert.False(t, IsRetriable(nil))
	assert.True(t, IsRetriable(errors.New("store unavailable")))
	assert.True(t, IsRetriable(fmt.Errorf("apply: %w", context.DeadlineExceeded)))

	wrapped := fmt.Errorf("outer: %w", Permanent(errors.New("user missing")))
	assert.True(t, IsPermanent(wrapped))
	assert.Nil(t, Permanent(nil))
}

func TestFormatTime_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 123000000, time.UTC)
	s := FormatTime(at)
	assert.Equal(t, "2024-03-01T12:30:00.123Z", s)

	back, err := ParseTime(s)
	require.NoError(t, err)
	assert.True(t, at.Equal(back))
}
