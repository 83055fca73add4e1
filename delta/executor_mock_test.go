package delta_test

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/ostreego/ostree/delta"
	"github.com/ostreego/ostree/internal/mocks/mocksink"
	"github.com/ostreego/ostree/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestApplyPartStopsOnFirstFailure exercises ApplyPart's per-part
// failure isolation (§4.7): once a metadata object's persist fails, the
// objects already written earlier in the same part stay written, and
// nothing later in the opcode stream (here, the file object) is ever
// attempted.
func TestApplyPartStopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	src := store.New(afero.NewMemMapFs(), "/src", store.ModeBare)
	require.NoError(t, src.Init())
	toCommit, toCsum, toData := commitWithFile(t, src, "hello.txt", "hello world")

	sb, partData, err := delta.Generate(src, nil, toCommit, toCsum, toData, delta.GenOptions{})
	require.NoError(t, err)
	require.Len(t, sb.Parts, 1)
	require.GreaterOrEqual(t, len(sb.Parts[0].Objects), 2, "expected dirmeta and dirtree ahead of the file object")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	sink := mocksink.NewMockSink(ctrl)

	injected := errors.New("disk full")
	first := sink.EXPECT().WriteRaw(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	second := sink.EXPECT().WriteRaw(gomock.Any(), gomock.Any(), gomock.Any()).Return(injected)
	gomock.InOrder(first, second)
	// No WriteFileObject expectation: an unexpected call there fails the
	// test, proving the file object is never reached.

	err = delta.ApplyPart(sink, sb.Parts[0], partData, delta.ExecOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, injected))
}
