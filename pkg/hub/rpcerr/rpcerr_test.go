package rpcerr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	huberrors "github.com/mcp-hub/proxy/pkg/errors"
)

func TestFromError_MapsKindToCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind huberrors.Kind
		code int
	}{
		{huberrors.KindNotFound, CodeMethodNotFound},
		{huberrors.KindConfig, CodeInvalidRequest},
		{huberrors.KindProtocol, CodeInternalError},
		{huberrors.KindTransport, CodeInternalError},
		{huberrors.KindApplication, CodeInternalError},
		{huberrors.KindDeadline, CodeInternalError},
	}

	for _, tc := range cases {
		obj := FromError(huberrors.New(tc.kind, "boom"))
		assert.Equal(t, tc.code, obj.Code, "kind %s", tc.kind)
		assert.Contains(t, string(obj.Data), string(tc.kind))
	}
}

func TestMethodNotFound(t *testing.T) {
	t.Parallel()

	obj := MethodNotFound("tools/unknown")
	assert.Equal(t, CodeMethodNotFound, obj.Code)
	assert.Contains(t, string(obj.Data), "tools/unknown")
}
