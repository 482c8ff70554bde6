package actor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrUnexpectedMessage(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{
			"blank message",
			&Context{message: ""},
			"unexpected message from <external> to <unknown> (string):  (no response expected)",
		},
		{
			"sender",
			&Context{message: "msg", sender: &Ref{address: Address{"/test"}}},
			"unexpected message from /test to <unknown> (string): msg (no response expected)",
		},
		{
			"recipient",
			&Context{message: "msg", recipient: &Ref{address: Address{"/test"}}},
			"unexpected message from <external> to /test (string): msg (no response expected)",
		},
		{
			"response",
			&Context{message: "msg", result: &response{}},
			"unexpected message from <external> to <unknown> (string): msg (response expected)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ErrUnexpectedMessage(tt.ctx).Error())
		})
	}
}

func TestNormalizeAddr(t *testing.T) {
	require.Equal(t, "/jobs/*", normalizeAddr("/jobs/12"))
	require.Equal(t, "/batch/notify-timer-*",
		normalizeAddr("/batch/notify-timer-6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	require.Equal(t, "/", normalizeAddr("/"))
}
