package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"moatbus/internal/message"
)

type fakeSink struct {
	calls []string
	err   error
}

func (f *fakeSink) Record(source, code uint8, body []byte) error {
	f.calls = append(f.calls, "record")
	return f.err
}

type fakePublisher struct {
	calls []string
	err   error
}

func (f *fakePublisher) Publish(source, code uint8, body []byte) error {
	f.calls = append(f.calls, "publish")
	return f.err
}

func TestRouterFansOutToBothDestinations(t *testing.T) {
	sink := &fakeSink{}
	pub := &fakePublisher{}
	r := NewRouter(sink, pub, nil)

	msg := message.New(1, 0x05, 0x00, 0x02)
	msg.AppendBits(0xFF, 8)

	accepted := r.Process(msg)
	require.True(t, accepted)
	require.Equal(t, []string{"record"}, sink.calls)
	require.Equal(t, []string{"publish"}, pub.calls)
}

func TestRouterToleratesSinkErrors(t *testing.T) {
	sink := &fakeSink{err: errors.New("boom")}
	pub := &fakePublisher{}
	r := NewRouter(sink, pub, nil)

	msg := message.New(1, 0x05, 0x00, 0x02)
	require.True(t, r.Process(msg))
	require.Equal(t, []string{"publish"}, pub.calls)
}

func TestRouterWithNilDestinations(t *testing.T) {
	r := NewRouter(nil, nil, nil)
	msg := message.New(1, 0x05, 0x00, 0x02)
	require.True(t, r.Process(msg))
}
