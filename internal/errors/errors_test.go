package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	err := New(ErrCodeSplitInit, "cannot create split writer", nil)

	assert.Equal(t, CategoryIO, err.Category)
	assert.Equal(t, SeverityFatal, err.Severity)
	assert.False(t, err.Retryable)
	assert.Equal(t, "[ERR_202_SPLIT_INIT] cannot create split writer", err.Error())
}

func TestNew_ParseErrorsAreWarnings(t *testing.T) {
	err := ParseError("invalid JSON", nil)

	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.False(t, IsFatal(err))
}

func TestNew_SinkClosedIsFatalHandoff(t *testing.T) {
	err := SinkClosedError("sink closed", nil)

	assert.Equal(t, CategoryHandoff, err.Category)
	assert.True(t, IsFatal(err))
}

func TestWrap_PreservesCauseChain(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrCodeScratchDir, cause)

	require.NotNil(t, err)
	assert.Equal(t, "disk full", err.Message)
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeScratchDir, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	err := AppendError("append failed", nil)
	target := New(ErrCodeWriterAppend, "", nil)

	assert.True(t, stderrors.Is(err, target))
	assert.False(t, stderrors.Is(err, New(ErrCodeDocParse, "", nil)))
}

func TestWithDetail_AccumulatesContext(t *testing.T) {
	err := SplitInitError("writer init failed", nil).
		WithDetail("index_id", "wikipedia").
		WithDetail("dir", "/tmp/scratch")

	assert.Equal(t, "wikipedia", err.Details["index_id"])
	assert.Equal(t, "/tmp/scratch", err.Details["dir"])
}

func TestIsRetryable_OnlySpoolRead(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeSpoolRead, "transient", nil)))
	assert.False(t, IsRetryable(New(ErrCodeSinkClosed, "closed", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGetCode_NonIngestError(t *testing.T) {
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeDocParse, GetCode(ParseError("bad doc", nil)))
}
