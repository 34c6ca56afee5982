package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCloseCodePolicy(t *testing.T) {
	policy := DefaultCloseCodePolicy()

	tests := []struct {
		code int
		want CloseAction
	}{
		{1000, CloseActionReidentify},
		{1001, CloseActionReidentify},
		{1006, CloseActionResume},
		{CloseUnknownError, CloseActionResume},
		{CloseUnknownOpcode, CloseActionResume},
		{CloseDecodeError, CloseActionResume},
		{CloseNotAuthenticated, CloseActionReidentify},
		{CloseAuthenticationFailed, CloseActionAuthFailure},
		{CloseAlreadyAuthenticated, CloseActionResume},
		{CloseInvalidSeq, CloseActionReidentify},
		{CloseRateLimited, CloseActionResume},
		{CloseSessionTimedOut, CloseActionReidentify},
		{CloseInvalidShard, CloseActionFatal},
		{CloseShardingRequired, CloseActionFatal},
		{CloseInvalidAPIVersion, CloseActionFatal},
		{CloseInvalidIntents, CloseActionFatal},
		{CloseDisallowedIntents, CloseActionFatal},
		{4999, CloseActionResume},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Classify(tt.code), "code %d", tt.code)
		})
	}
}
